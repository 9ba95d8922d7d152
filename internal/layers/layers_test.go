package layers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

var asOf = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func newContext() *domain.AnalysisContext {
	return &domain.AnalysisContext{Ticker: "ACME", AnalysisDate: asOf}
}

func daysAgo(n int) *time.Time {
	t := asOf.AddDate(0, 0, -n)
	return &t
}

func boolPtr(b bool) *bool { return &b }

func newRegistry(t *testing.T) *factor.Registry {
	t.Helper()
	reg, err := NewDefaultRegistry(DefaultConfig())
	require.NoError(t, err)
	return reg
}

// score folds every layer in order the way the analyzer does.
func score(t *testing.T, reg *factor.Registry, ctx *domain.AnalysisContext) float64 {
	t.Helper()
	p := 0.0
	for _, layer := range factor.Layers() {
		next, _, err := reg.ApplyLayer(layer, ctx, p)
		require.NoError(t, err)
		p = next
	}
	return p
}

func evaluate(t *testing.T, reg *factor.Registry, name string, ctx *domain.AnalysisContext) factor.Result {
	t.Helper()
	res, err := reg.Evaluate(name, ctx, 0.70)
	require.NoError(t, err)
	return res
}

func TestRegister_Table(t *testing.T) {
	reg := newRegistry(t)

	all := reg.List()
	seen := make(map[string]bool, len(all))
	for _, info := range all {
		assert.False(t, seen[info.Name], "duplicate %s", info.Name)
		seen[info.Name] = true
		assert.True(t, info.Enabled)
		assert.Equal(t, Version, info.Version)
		assert.NotEmpty(t, info.Description)
	}

	require.Len(t, reg.LayerFactors(factor.LayerBase), 1)
	require.Len(t, reg.LayerFactors(factor.LayerCap), 1)
	for _, info := range reg.LayerFactors(factor.LayerDesignation) {
		assert.Equal(t, factor.MaxOnly, info.Policy)
	}
	for _, layer := range []factor.Layer{factor.LayerClinical, factor.LayerManufacturing, factor.LayerAdCom} {
		for _, info := range reg.LayerFactors(layer) {
			assert.Equal(t, factor.Additive, info.Policy, info.Name)
		}
	}

	// registering twice into the same registry is a configuration error
	assert.ErrorIs(t, Register(reg, DefaultConfig()), factor.ErrDuplicateFactor)
}

func TestScore_MinimalContextIsBaseRate(t *testing.T) {
	assert.InDelta(t, 0.70, score(t, newRegistry(t), newContext()), 1e-9)
}

func TestScore_DesignationsTakeMaxOnly(t *testing.T) {
	reg := newRegistry(t)

	ctx := newContext()
	ctx.Designations = domain.FDADesignations{BreakthroughTherapy: true}
	assert.InDelta(t, 0.78, score(t, reg, ctx), 1e-9)

	ctx.Designations.PriorityReview = true
	ctx.Designations.OrphanDrug = true
	assert.InDelta(t, 0.78, score(t, reg, ctx), 1e-9)

	ctx.Designations = domain.FDADesignations{OrphanDrug: true, FastTrack: true}
	assert.InDelta(t, 0.74, score(t, reg, ctx), 1e-9)
}

func TestScore_AllDesignationsAndSPAHitCeiling(t *testing.T) {
	ctx := newContext()
	ctx.Designations = domain.FDADesignations{
		BreakthroughTherapy: true,
		PriorityReview:      true,
		FastTrack:           true,
		OrphanDrug:          true,
		AcceleratedApproval: true,
		FirstInClass:        true,
	}
	ctx.Clinical.SPAAgreed = true
	ctx.Clinical.PrimaryEndpointMet = boolPtr(true)
	assert.InDelta(t, 0.90, score(t, newRegistry(t), ctx), 1e-9)
}

func TestPrimaryEndpoint(t *testing.T) {
	reg := newRegistry(t)
	ctx := newContext()

	res := evaluate(t, reg, FactorPrimaryEndpoint, ctx)
	assert.False(t, res.Applied)
	assert.Zero(t, res.Adjustment)

	ctx.Clinical.PrimaryEndpointMet = boolPtr(true)
	assert.InDelta(t, AdjEndpointMet, evaluate(t, reg, FactorPrimaryEndpoint, ctx).Adjustment, 1e-9)

	ctx.Clinical.PrimaryEndpointMet = boolPtr(false)
	assert.InDelta(t, AdjEndpointNotMet, evaluate(t, reg, FactorPrimaryEndpoint, ctx).Adjustment, 1e-9)
}

func TestClinicalHold(t *testing.T) {
	reg := newRegistry(t)
	ctx := newContext()
	ctx.Clinical.HasClinicalHold = true

	res := evaluate(t, reg, FactorClinicalHold, ctx)
	assert.InDelta(t, AdjClinicalHoldActive, res.Adjustment, 1e-9)
	assert.Equal(t, true, res.Metadata[MetaDateMissing])
	assert.Less(t, res.Confidence, 1.0)

	ctx.Clinical.ClinicalHoldDate = daysAgo(400)
	ctx.Clinical.ClinicalHoldLiftedDate = daysAgo(200)
	res = evaluate(t, reg, FactorClinicalHold, ctx)
	assert.InDelta(t, AdjClinicalHoldLifted, res.Adjustment, 1e-9)
	assert.Nil(t, res.Metadata)
}

func TestWarningLetter_Staleness(t *testing.T) {
	reg := newRegistry(t)
	adj := func(days int) float64 {
		ctx := newContext()
		ctx.Manufacturing.HasWarningLetter = true
		ctx.Manufacturing.WarningLetterDate = daysAgo(days)
		res := evaluate(t, reg, FactorWarningLetter, ctx)
		require.True(t, res.Applied)
		assert.Equal(t, days, res.Metadata[MetaDaysSince])
		return res.Adjustment
	}

	recent := adj(30)
	boundaryRecent := adj(180)
	aging := adj(300)
	boundaryStale := adj(365)
	stale := adj(800)

	assert.InDelta(t, AdjWarningLetterRecent, recent, 1e-9)
	assert.InDelta(t, AdjWarningLetterRecent, boundaryRecent, 1e-9)
	assert.InDelta(t, AdjWarningLetterAging, aging, 1e-9)
	assert.InDelta(t, AdjWarningLetterStale, stale, 1e-9)
	assert.Less(t, -boundaryStale, -boundaryRecent)
	assert.Less(t, -stale, -recent)
}

func TestWarningLetter_Undated(t *testing.T) {
	ctx := newContext()
	ctx.Manufacturing.HasWarningLetter = true
	res := evaluate(t, newRegistry(t), FactorWarningLetter, ctx)
	assert.True(t, res.Applied)
	assert.InDelta(t, AdjWarningLetterUndated, res.Adjustment, 1e-9)
	assert.Equal(t, true, res.Metadata[MetaDateMissing])
}

func TestForm483(t *testing.T) {
	reg := newRegistry(t)
	tests := []struct {
		obs  int
		want float64
	}{
		{0, 0},
		{1, AdjForm483Minor},
		{3, AdjForm483Minor},
		{4, AdjForm483Moderate},
		{9, AdjForm483Moderate},
		{10, AdjForm483Major},
	}
	for _, tt := range tests {
		ctx := newContext()
		ctx.Manufacturing.Form483Observations = tt.obs
		assert.InDelta(t, tt.want, evaluate(t, reg, FactorForm483, ctx).Adjustment, 1e-9, "obs=%d", tt.obs)
	}
}

func TestPriorCRL(t *testing.T) {
	reg := newRegistry(t)
	tests := []struct {
		name    string
		history []domain.CRLInfo
		prior   float64
		repeat  float64
	}{
		{"none", nil, 0, 0},
		{"cmc class 1", []domain.CRLInfo{{Type: domain.CRLTypeCMC, ResubmissionClass: domain.ResubmissionClass1}}, AdjPriorCRLCMCClass1, 0},
		{"cmc class 2", []domain.CRLInfo{{Type: domain.CRLTypeCMC, ResubmissionClass: domain.ResubmissionClass2}}, AdjPriorCRLCMCClass2, 0},
		{"cmc by reason type", []domain.CRLInfo{{Type: domain.CRLTypeMixed, ReasonType: "cmc", ResubmissionClass: domain.ResubmissionClass1}}, AdjPriorCRLCMCClass1, 0},
		{"efficacy", []domain.CRLInfo{{Type: domain.CRLTypeEfficacy}}, AdjPriorCRLOther, 0},
		{"repeat", []domain.CRLInfo{
			{Type: domain.CRLTypeEfficacy, Date: daysAgo(900)},
			{Type: domain.CRLTypeCMC, Date: daysAgo(200), ResubmissionClass: domain.ResubmissionClass2},
		}, AdjPriorCRLCMCClass2, AdjRepeatCRL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContext()
			ctx.CRLHistory = tt.history
			assert.InDelta(t, tt.prior, evaluate(t, reg, FactorPriorCRL, ctx).Adjustment, 1e-9)
			assert.InDelta(t, tt.repeat, evaluate(t, reg, FactorRepeatCRL, ctx).Adjustment, 1e-9)
		})
	}
}

func TestDisputeEarningsPetition(t *testing.T) {
	reg := newRegistry(t)

	ctx := newContext()
	ctx.Dispute = domain.DisputeInfo{HasDispute: true, Outcome: domain.DisputeWon}
	assert.InDelta(t, 0.80, score(t, reg, ctx), 1e-9)

	ctx = newContext()
	ctx.Dispute = domain.DisputeInfo{HasDispute: true, Outcome: domain.DisputePending}
	assert.InDelta(t, 0.70, score(t, reg, ctx), 1e-9)

	ctx = newContext()
	ctx.EarningsCall = domain.EarningsCallInfo{LabelNegotiationMentioned: true, TimelineDelayConfirmed: true}
	assert.InDelta(t, 0.67, score(t, reg, ctx), 1e-9)

	ctx = newContext()
	ctx.CitizenPetition = domain.CitizenPetitionInfo{Filed: true}
	assert.InDelta(t, 0.67, score(t, reg, ctx), 1e-9)

	ctx.CitizenPetition.Status = domain.PetitionDenied
	assert.InDelta(t, 0.72, score(t, reg, ctx), 1e-9)

	ctx.CitizenPetition.Status = domain.PetitionGranted
	assert.InDelta(t, 0.45, score(t, reg, ctx), 1e-9)
}

func TestAdComVote(t *testing.T) {
	reg := newRegistry(t)

	ctx := newContext()
	ctx.AdCom = domain.AdComInfo{WasHeld: true, VotesFor: 10, VotesTotal: 12, VoteDate: daysAgo(20)}
	res := evaluate(t, reg, FactorAdComVote, ctx)
	assert.InDelta(t, AdjAdComPositive, res.Adjustment, 1e-9)
	assert.Equal(t, 20, res.Metadata[MetaDaysSince])

	ctx.AdCom.VotesFor = 6
	assert.InDelta(t, AdjAdComNegative, evaluate(t, reg, FactorAdComVote, ctx).Adjustment, 1e-9)

	ctx.AdCom = domain.AdComInfo{WasHeld: true}
	assert.False(t, evaluate(t, reg, FactorAdComVote, ctx).Applied)
}
