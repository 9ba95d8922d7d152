package analyzer

import (
	"fmt"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
	"pdufa-lab/internal/layers"
)

// Confidence weights.
const (
	weightCompleteness = 0.4
	weightRecency      = 0.3
	weightFactors      = 0.3

	minConfidence = 0.1
	maxConfidence = 1.0

	completenessWarnBelow = 0.7
)

// Recency penalties.
const (
	penaltyPDUFAPassed   = 0.3
	penaltyStaleAdCom    = 0.2
	penaltyUndatedFactor = 0.2

	staleAdComDays = 180
)

// completeness is the share of the data checklist that is present.
// The AdCom vote only counts when a committee was held.
func completeness(ctx *domain.AnalysisContext) float64 {
	_, endpointKnown := ctx.Clinical.EndpointMet()
	checks := []bool{
		ctx.Ticker != "",
		ctx.DrugName != "",
		ctx.PDUFADate != nil,
		endpointKnown,
		ctx.Clinical.Phase.IsKnown(),
		ctx.Manufacturing.PAIStatus.IsKnown(),
	}
	if ctx.AdCom.WasHeld {
		_, ok := ctx.AdCom.VoteRatio()
		checks = append(checks, ok)
	}

	present := 0
	for _, ok := range checks {
		if ok {
			present++
		}
	}
	return float64(present) / float64(len(checks))
}

// recency scores how current the inputs are and explains each deduction.
func recency(ctx *domain.AnalysisContext, applied []factor.Result) (float64, []string) {
	score := 1.0
	var warnings []string

	if days, ok := ctx.DaysToPDUFA(); ok && days < 0 {
		score -= penaltyPDUFAPassed
		warnings = append(warnings, fmt.Sprintf("PDUFA date passed %d days ago", -days))
	}
	if days, ok := ctx.DaysSinceAdCom(); ok && days > staleAdComDays {
		score -= penaltyStaleAdCom
		warnings = append(warnings, fmt.Sprintf("AdCom %d days ago (stale)", days))
	}
	for _, f := range applied {
		if missing, _ := f.Metadata[layers.MetaDateMissing].(bool); missing {
			score -= penaltyUndatedFactor
			warnings = append(warnings, fmt.Sprintf("%s applied without a date", f.Name))
		}
	}
	return clamp(score, 0, 1), warnings
}

func confidence(completeness, recency float64, applied []factor.Result) float64 {
	mean := 1.0
	if len(applied) > 0 {
		sum := 0.0
		for _, f := range applied {
			sum += f.Confidence
		}
		mean = sum / float64(len(applied))
	}
	c := weightCompleteness*completeness + weightRecency*recency + weightFactors*mean
	return clamp(c, minConfidence, maxConfidence)
}
