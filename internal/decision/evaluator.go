package decision

import "fmt"

// Evaluator applies Criteria to backtest results.
type Evaluator struct {
	criteria Criteria
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(c Criteria) *Evaluator {
	return &Evaluator{criteria: c}
}

// Criteria returns the thresholds in use.
func (e *Evaluator) Criteria() Criteria {
	return e.criteria
}

// Evaluate produces a Result from input.
// PASS only if every criterion passes and no blocker triggers.
func (e *Evaluator) Evaluate(input *Input) (*Result, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	criteria := e.evaluateCriteria(input)
	blockers := e.evaluateBlockers(input)

	decision := DecisionPass
	for _, c := range append(append([]CriterionResult{}, criteria...), blockers...) {
		if !c.Pass {
			decision = DecisionFail
			break
		}
	}

	return &Result{
		RunID:    input.RunID,
		Decision: decision,
		Criteria: criteria,
		Blockers: blockers,
	}, nil
}

func (e *Evaluator) evaluateCriteria(in *Input) []CriterionResult {
	c := e.criteria
	return []CriterionResult{
		{
			Name:      "Sample size",
			Threshold: fmt.Sprintf(">= %d", c.MinEvaluated),
			Actual:    fmt.Sprintf("%d", in.Evaluated),
			Pass:      in.Evaluated >= c.MinEvaluated,
		},
		{
			Name:      "Precision",
			Threshold: fmt.Sprintf(">= %.2f", c.MinPrecision),
			Actual:    fmt.Sprintf("%.4f", in.Precision),
			Pass:      in.Precision >= c.MinPrecision,
		},
		{
			Name:      "Recall",
			Threshold: fmt.Sprintf(">= %.2f", c.MinRecall),
			Actual:    fmt.Sprintf("%.4f", in.Recall),
			Pass:      in.Recall >= c.MinRecall,
		},
		{
			Name:      "F1",
			Threshold: fmt.Sprintf(">= %.2f", c.MinF1),
			Actual:    fmt.Sprintf("%.4f", in.F1),
			Pass:      in.F1 >= c.MinF1,
		},
		{
			Name:      "Brier score",
			Threshold: fmt.Sprintf("<= %.2f", c.MaxBrier),
			Actual:    fmt.Sprintf("%.4f", in.BrierScore),
			Pass:      in.BrierScore <= c.MaxBrier,
		},
	}
}

// evaluateBlockers checks degenerate model behavior that fails the gate
// regardless of the headline numbers.
func (e *Evaluator) evaluateBlockers(in *Input) []CriterionResult {
	silent := in.ActualCRLs() > 0 && in.PredictedCRLs() == 0
	alarmist := in.Evaluated > 1 && in.PredictedCRLs() == in.Evaluated

	inverted := in.HighTierCRLRate >= 0 && in.LowTierCRLRate >= 0 &&
		in.HighTierCRLRate < in.LowTierCRLRate
	tierActual := "n/a"
	if in.HighTierCRLRate >= 0 && in.LowTierCRLRate >= 0 {
		tierActual = fmt.Sprintf("HIGH=%.2f, LOW=%.2f", in.HighTierCRLRate, in.LowTierCRLRate)
	}

	return []CriterionResult{
		{
			Name:      "Never predicts CRL",
			Threshold: "actual CRLs > 0 AND predicted CRLs == 0",
			Actual:    fmt.Sprintf("actual=%d, predicted=%d", in.ActualCRLs(), in.PredictedCRLs()),
			Pass:      !silent,
		},
		{
			Name:      "Predicts CRL for every event",
			Threshold: "predicted CRLs == evaluated",
			Actual:    fmt.Sprintf("predicted=%d, evaluated=%d", in.PredictedCRLs(), in.Evaluated),
			Pass:      !alarmist,
		},
		{
			Name:      "Tier ordering inverted",
			Threshold: "observed CRL rate HIGH < LOW",
			Actual:    tierActual,
			Pass:      !inverted,
		},
	}
}
