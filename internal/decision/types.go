package decision

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Decision is the gate outcome for a backtest run.
type Decision string

const (
	DecisionPass Decision = "PASS"
	DecisionFail Decision = "FAIL"
)

// Criteria are the acceptance thresholds for a scoring model.
type Criteria struct {
	MinEvaluated int     `yaml:"min_evaluated" validate:"gte=1"`
	MinPrecision float64 `yaml:"min_precision" validate:"gte=0,lte=1"`
	MinRecall    float64 `yaml:"min_recall" validate:"gte=0,lte=1"`
	MinF1        float64 `yaml:"min_f1" validate:"gte=0,lte=1"`
	MaxBrier     float64 `yaml:"max_brier" validate:"gt=0,lte=1"`
}

// DefaultCriteria returns the thresholds used when none are configured.
func DefaultCriteria() Criteria {
	return Criteria{
		MinEvaluated: 20,
		MinPrecision: 0.40,
		MinRecall:    0.50,
		MinF1:        0.45,
		MaxBrier:     0.20,
	}
}

var validate = validator.New()

// Validate checks that the thresholds are in range.
func (c Criteria) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("decision criteria: %w", err)
	}
	return nil
}

// Input errors.
var (
	ErrEmptyRunID   = errors.New("run_id is required")
	ErrNoEvaluated  = errors.New("run has no evaluated events")
	ErrBadRatio     = errors.New("ratio metric out of [0,1]")
	ErrCountsDiffer = errors.New("confusion matrix does not sum to evaluated count")
)

// Input holds the numbers the gate looks at.
type Input struct {
	RunID     string
	Evaluated int

	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int

	Precision  float64
	Recall     float64
	F1         float64
	BrierScore float64

	// Observed CRL rate for the HIGH and LOW tiers; -1 when the tier is empty.
	HighTierCRLRate float64
	LowTierCRLRate  float64
}

// ActualCRLs returns the number of evaluated events that received a CRL.
func (in *Input) ActualCRLs() int {
	return in.TruePositives + in.FalseNegatives
}

// PredictedCRLs returns the number of events the model flagged.
func (in *Input) PredictedCRLs() int {
	return in.TruePositives + in.FalsePositives
}

// Validate checks input invariants.
func (in *Input) Validate() error {
	if in == nil {
		return errors.New("input is nil")
	}
	if in.RunID == "" {
		return ErrEmptyRunID
	}
	if in.Evaluated <= 0 {
		return ErrNoEvaluated
	}
	if in.TruePositives+in.FalsePositives+in.TrueNegatives+in.FalseNegatives != in.Evaluated {
		return ErrCountsDiffer
	}
	for _, v := range []float64{in.Precision, in.Recall, in.F1, in.BrierScore} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %v", ErrBadRatio, v)
		}
	}
	return nil
}

// CriterionResult is pass/fail for one check.
type CriterionResult struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

// Result is the gate decision with its checklist.
type Result struct {
	RunID    string            `json:"run_id"`
	Decision Decision          `json:"decision"`
	Criteria []CriterionResult `json:"criteria"`
	Blockers []CriterionResult `json:"blockers"` // Pass=false means triggered
}
