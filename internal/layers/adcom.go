package layers

import (
	"fmt"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

// AdCom adjustments.
const (
	AdjAdComPositive = 0.10
	AdjAdComNegative = -0.25
)

const FactorAdComVote = "adcom_vote"

func adcomFactors() []definition {
	return []definition{{
		info: factor.Info{
			Name:        FactorAdComVote,
			Layer:       factor.LayerAdCom,
			Order:       10,
			Description: "Advisory committee vote",
		},
		fn: adcomVote,
	}}
}

func adcomVote(ctx *domain.AnalysisContext, _ float64) (factor.Result, error) {
	a := ctx.AdCom
	if !a.WasHeld {
		return factor.Neutral(FactorAdComVote, "no advisory committee"), nil
	}
	ratio, ok := a.VoteRatio()
	if !ok {
		return factor.Neutral(FactorAdComVote, "advisory committee held, vote unknown"), nil
	}

	adj, verdict := AdjAdComNegative, "negative"
	if a.IsPositive() {
		adj, verdict = AdjAdComPositive, "positive"
	}
	res := factor.Apply(FactorAdComVote, adj,
		fmt.Sprintf("%s advisory committee vote %d-%d", verdict, a.VotesFor, a.VotesTotal-a.VotesFor)).
		With("vote_ratio", ratio)
	if days, dated := ctx.DaysSinceAdCom(); dated {
		res = res.With(MetaDaysSince, days)
	}
	return res, nil
}
