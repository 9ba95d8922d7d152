package layers

import (
	"fmt"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

// FactorBaseRate is the single base layer factor.
const FactorBaseRate = "base_rate"

func baseFactors(cfg Config) []definition {
	rate := cfg.BaseRate
	return []definition{{
		info: factor.Info{
			Name:        FactorBaseRate,
			Layer:       factor.LayerBase,
			Order:       1,
			Description: "Historical approval rate for PDUFA actions",
			Required:    true,
		},
		fn: func(_ *domain.AnalysisContext, current float64) (factor.Result, error) {
			return factor.Apply(FactorBaseRate, rate-current,
				fmt.Sprintf("base approval rate %.0f%%", rate*100)), nil
		},
	}}
}
