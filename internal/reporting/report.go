package reporting

import (
	"time"

	"pdufa-lab/internal/decision"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/metrics"
)

// Report is the rendered view of one backtest run.
type Report struct {
	GeneratedAt time.Time
	Run         domain.BacktestRun

	Calibration []metrics.CalibrationBucket

	// Gate is nil when no evaluator is configured or the run cannot be gated.
	Gate      *decision.Result
	GateError string

	// Events sorted by event_id.
	Events []EventRow

	// Events the run did not score (unresolved outcome or load failure).
	Excluded []ExcludedRow

	// BindingCaps counts evaluated events per binding hard cap, sorted by cap name.
	BindingCaps []CapRow

	DataQuality DataQualitySection
}

// DataQualitySection lists integrity problems found while building the report.
type DataQualitySection struct {
	IntegrityErrors []string
}

// EventRow is one scored event.
type EventRow struct {
	EventID        string
	Ticker         string
	DrugName       string
	PDUFADate      *time.Time
	Probability    float64
	CRLProbability float64
	RiskTier       domain.RiskTier
	Confidence     float64
	BindingCap     string
	PredictedCRL   bool
	Actual         domain.Outcome
}

// Correct reports whether the prediction matched a resolved outcome.
func (r EventRow) Correct() bool {
	if !r.Actual.IsResolved() {
		return false
	}
	return r.PredictedCRL == (r.Actual == domain.OutcomeCRL)
}

// ExcludedRow is an event left out of scoring.
type ExcludedRow struct {
	EventID string
	Ticker  string
	Status  string
	Reason  string
}

// CapRow counts how often a hard cap bound the final probability.
type CapRow struct {
	Cap    string
	Events int
	CRLs   int
}

func eventRow(r *domain.AnalysisRecord) EventRow {
	return EventRow{
		EventID:        r.EventID,
		Ticker:         r.Ticker,
		DrugName:       r.DrugName,
		PDUFADate:      r.PDUFADate,
		Probability:    r.Probability,
		CRLProbability: r.CRLProbability,
		RiskTier:       r.RiskTier,
		Confidence:     r.Confidence,
		BindingCap:     r.BindingCap,
		PredictedCRL:   r.PredictedCRL,
		Actual:         r.ActualOutcome,
	}
}
