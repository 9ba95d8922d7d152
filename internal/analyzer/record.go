package analyzer

import (
	"time"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/idhash"
)

// Record converts r into a storable analysis of eventID. runID is empty
// for ad-hoc analyses; actual is the event's outcome known at storage time.
func (r *Result) Record(eventID, runID string, pdufa *time.Time, actual domain.Outcome) *domain.AnalysisRecord {
	rec := &domain.AnalysisRecord{
		AnalysisID:      idhash.ComputeAnalysisID(eventID, runID, r.AnalyzedAt.UnixMilli()),
		EventID:         eventID,
		RunID:           runID,
		Ticker:          r.Ticker,
		DrugName:        r.DrugName,
		Probability:     r.Probability,
		BaseProbability: r.BaseProbability,
		CRLProbability:  r.CRLProbability(),
		RiskTier:        r.RiskTier(),
		Confidence:      r.Confidence,
		BindingCap:      r.BindingCap,
		FactorsApplied:  r.FactorNames(),
		Warnings:        append([]string(nil), r.Warnings...),
		ActualOutcome:   actual,
		PredictedCRL:    r.PredictsCRL(),
		AnalyzedAt:      r.AnalyzedAt,
	}
	if pdufa != nil {
		d := *pdufa
		rec.PDUFADate = &d
	}
	return rec
}
