package memory

import "pdufa-lab/internal/domain"

func cloneEvent(e *domain.EventRecord) *domain.EventRecord {
	c := *e
	if crls, ok := e.CRLHistory.Get(); ok {
		c.CRLHistory.Value = append([]domain.CRLRecord(nil), crls...)
	}
	return &c
}

func cloneAnalysis(r *domain.AnalysisRecord) *domain.AnalysisRecord {
	c := *r
	if r.PDUFADate != nil {
		d := *r.PDUFADate
		c.PDUFADate = &d
	}
	c.FactorsApplied = append([]string(nil), r.FactorsApplied...)
	c.Warnings = append([]string(nil), r.Warnings...)
	return &c
}

func cloneRun(r *domain.BacktestRun) *domain.BacktestRun {
	c := *r
	c.Tiers = append([]domain.TierStats(nil), r.Tiers...)
	return &c
}
