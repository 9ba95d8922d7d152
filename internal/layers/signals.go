package layers

import (
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

// Dispute, earnings call and citizen petition adjustments.
const (
	AdjDisputeWon          = 0.10
	AdjDisputePartiallyWon = 0.03
	AdjDisputeLost         = -0.10

	AdjLabelNegotiation = 0.05
	AdjTimelineDelay    = -0.08
	AdjLaunchPrep       = 0.02

	AdjPetitionPending = -0.03
	AdjPetitionDenied  = 0.02
	AdjPetitionGranted = -0.25
)

const (
	FactorDispute          = "dispute_resolution"
	FactorLabelNegotiation = "label_negotiation"
	FactorTimelineDelay    = "timeline_delay"
	FactorLaunchPrep       = "launch_preparation"
	FactorPetitionFiled    = "petition_filed"
	FactorPetitionDenied   = "petition_denied"
	FactorPetitionGranted  = "petition_granted"
)

func disputeFactors() []definition {
	return []definition{{
		info: factor.Info{
			Name:        FactorDispute,
			Layer:       factor.LayerDispute,
			Order:       10,
			Description: "Formal dispute resolution outcome",
		},
		fn: disputeResolution,
	}}
}

func disputeResolution(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	d := ctx.Dispute
	if !d.HasDispute {
		return factor.Neutral(FactorDispute, "no dispute"), nil
	}
	switch d.Outcome {
	case domain.DisputeWon:
		return factor.Apply(FactorDispute, AdjDisputeWon, "dispute resolved in sponsor's favor"), nil
	case domain.DisputePartiallyWon:
		return factor.Apply(FactorDispute, AdjDisputePartiallyWon, "dispute partially won"), nil
	case domain.DisputeLost:
		return factor.Apply(FactorDispute, AdjDisputeLost, "dispute denied"), nil
	default:
		return factor.Neutral(FactorDispute, "dispute pending"), nil
	}
}

func earningsFactors() []definition {
	flag := func(name string, order int, desc string, adj float64, set func(domain.EarningsCallInfo) bool) definition {
		return definition{
			info: factor.Info{Name: name, Layer: factor.LayerEarnings, Order: order, Description: desc},
			fn: func(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
				if !set(ctx.EarningsCall) {
					return factor.Neutral(name, "not mentioned"), nil
				}
				return factor.Apply(name, adj, desc), nil
			},
		}
	}
	return []definition{
		flag(FactorLabelNegotiation, 10, "Management reports label negotiation with FDA", AdjLabelNegotiation,
			func(e domain.EarningsCallInfo) bool { return e.LabelNegotiationMentioned }),
		flag(FactorTimelineDelay, 20, "Management confirms a review timeline delay", AdjTimelineDelay,
			func(e domain.EarningsCallInfo) bool { return e.TimelineDelayConfirmed }),
		flag(FactorLaunchPrep, 30, "Management describes commercial launch preparation", AdjLaunchPrep,
			func(e domain.EarningsCallInfo) bool { return e.LaunchPreparationMentioned }),
	}
}

func petitionFactors() []definition {
	status := func(p domain.CitizenPetitionInfo) domain.PetitionStatus {
		if !p.Filed && p.Status == domain.PetitionUnknown {
			return domain.PetitionUnknown
		}
		if p.Status == domain.PetitionUnknown {
			return domain.PetitionPending
		}
		return p.Status
	}
	rule := func(name string, order int, desc string, adj float64, want domain.PetitionStatus) definition {
		return definition{
			info: factor.Info{Name: name, Layer: factor.LayerPetition, Order: order, Description: desc},
			fn: func(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
				if status(ctx.CitizenPetition) != want {
					return factor.Neutral(name, "does not apply"), nil
				}
				return factor.Apply(name, adj, desc), nil
			},
		}
	}
	return []definition{
		rule(FactorPetitionFiled, 10, "Citizen petition awaiting FDA response", AdjPetitionPending, domain.PetitionPending),
		rule(FactorPetitionDenied, 20, "Citizen petition denied by FDA", AdjPetitionDenied, domain.PetitionDenied),
		rule(FactorPetitionGranted, 30, "Citizen petition granted by FDA", AdjPetitionGranted, domain.PetitionGranted),
	}
}
