package layers

import (
	"fmt"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

// Clinical adjustments.
const (
	AdjEndpointMet        = 0.05
	AdjEndpointNotMet     = -0.40
	AdjSPAAgreed          = 0.12
	AdjSPARescinded       = -0.05
	AdjSingleArm          = -0.10
	AdjChinaOnly          = -0.20
	AdjExUS               = -0.05
	AdjMentalHealth       = -0.05
	AdjClinicalHoldActive = -0.15
	AdjClinicalHoldLifted = -0.03
	AdjEarlyPhase         = -0.05
)

const (
	FactorPrimaryEndpoint = "primary_endpoint"
	FactorSPA             = "spa_agreement"
	FactorSingleArm       = "single_arm_trial"
	FactorTrialRegion     = "trial_region"
	FactorMentalHealth    = "mental_health_indication"
	FactorClinicalHold    = "clinical_hold"
	FactorEarlyPhase      = "early_phase_submission"
)

func clinicalFactors() []definition {
	info := func(name string, order int, desc string) factor.Info {
		return factor.Info{Name: name, Layer: factor.LayerClinical, Order: order, Description: desc}
	}
	return []definition{
		{info(FactorPrimaryEndpoint, 10, "Pivotal trial primary endpoint outcome"), primaryEndpoint},
		{info(FactorSPA, 20, "Special Protocol Assessment in place"), spaAgreement},
		{info(FactorSingleArm, 30, "Single-arm pivotal design"), singleArm},
		{info(FactorTrialRegion, 40, "Enrollment geography of the pivotal trial"), trialRegion},
		{info(FactorMentalHealth, 50, "Psychiatric indication with subjective endpoints"), mentalHealth},
		{info(FactorClinicalHold, 60, "Clinical hold history"), clinicalHold},
		{info(FactorEarlyPhase, 70, "Submission backed by phase 1 or 2 data"), earlyPhase},
	}
}

func primaryEndpoint(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	met, known := ctx.Clinical.EndpointMet()
	switch {
	case !known:
		return factor.Neutral(FactorPrimaryEndpoint, "primary endpoint outcome unknown"), nil
	case met:
		return factor.Apply(FactorPrimaryEndpoint, AdjEndpointMet, "primary endpoint met"), nil
	default:
		return factor.Apply(FactorPrimaryEndpoint, AdjEndpointNotMet, "primary endpoint not met"), nil
	}
}

func spaAgreement(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	c := ctx.Clinical
	switch {
	case c.SPAActive():
		return factor.Apply(FactorSPA, AdjSPAAgreed, "SPA agreed with FDA"), nil
	case c.SPAAgreed && c.SPARescinded:
		return factor.Apply(FactorSPA, AdjSPARescinded, "SPA rescinded"), nil
	default:
		return factor.Neutral(FactorSPA, "no SPA"), nil
	}
}

func singleArm(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	if !ctx.Clinical.SingleArm {
		return factor.Neutral(FactorSingleArm, "controlled trial or design unknown"), nil
	}
	return factor.Apply(FactorSingleArm, AdjSingleArm, "single-arm trial without concurrent control"), nil
}

func trialRegion(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	switch ctx.Clinical.Region {
	case domain.RegionChinaOnly:
		return factor.Apply(FactorTrialRegion, AdjChinaOnly, "pivotal data from China-only enrollment").
			With("region", string(domain.RegionChinaOnly)), nil
	case domain.RegionExUS:
		return factor.Apply(FactorTrialRegion, AdjExUS, "pivotal data from ex-US enrollment").
			With("region", string(domain.RegionExUS)), nil
	default:
		return factor.Neutral(FactorTrialRegion, "US or global enrollment"), nil
	}
}

func mentalHealth(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	if !ctx.Clinical.MentalHealthIndication {
		return factor.Neutral(FactorMentalHealth, "non-psychiatric indication"), nil
	}
	return factor.Apply(FactorMentalHealth, AdjMentalHealth, "psychiatric indication, high placebo response risk"), nil
}

func clinicalHold(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	c := ctx.Clinical
	if !c.HasClinicalHold {
		return factor.Neutral(FactorClinicalHold, "no clinical hold"), nil
	}
	if !c.ClinicalHoldActive() {
		return factor.Apply(FactorClinicalHold, AdjClinicalHoldLifted,
			fmt.Sprintf("clinical hold lifted %s", c.ClinicalHoldLiftedDate.Format(domain.DateLayout))), nil
	}
	res := factor.Apply(FactorClinicalHold, AdjClinicalHoldActive, "clinical hold in effect")
	if c.ClinicalHoldDate == nil {
		res.Confidence = confidenceUndatedEvent
		res = res.With(MetaDateMissing, true)
	}
	return res, nil
}

func earlyPhase(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	p := ctx.Clinical.Phase
	if !p.IsKnown() || p >= domain.Phase3 {
		return factor.Neutral(FactorEarlyPhase, "phase 3 data or phase unknown"), nil
	}
	return factor.Apply(FactorEarlyPhase, AdjEarlyPhase, fmt.Sprintf("pivotal data from phase %d", int(p))), nil
}
