package decision

import "pdufa-lab/internal/domain"

// FromRun builds gate input from a stored backtest run.
func FromRun(run *domain.BacktestRun) (*Input, error) {
	in := &Input{
		RunID:           run.RunID,
		Evaluated:       run.Evaluated,
		TruePositives:   run.TruePositives,
		FalsePositives:  run.FalsePositives,
		TrueNegatives:   run.TrueNegatives,
		FalseNegatives:  run.FalseNegatives,
		Precision:       run.Precision,
		Recall:          run.Recall,
		F1:              run.F1,
		BrierScore:      run.BrierScore,
		HighTierCRLRate: -1,
		LowTierCRLRate:  -1,
	}
	for _, ts := range run.Tiers {
		if ts.Count == 0 {
			continue
		}
		switch ts.Tier {
		case domain.RiskHigh:
			in.HighTierCRLRate = ts.ObservedCRLRate
		case domain.RiskLow:
			in.LowTierCRLRate = ts.ObservedCRLRate
		}
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}
