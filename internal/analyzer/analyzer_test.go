package analyzer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
	"pdufa-lab/internal/layers"
)

var asOf = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func newContext() *domain.AnalysisContext {
	return &domain.AnalysisContext{Ticker: "ACME", AnalysisDate: asOf}
}

func fullContext() *domain.AnalysisContext {
	met := true
	pdufa := asOf.AddDate(0, 0, 45)
	return &domain.AnalysisContext{
		Ticker:       "ACME",
		DrugName:     "acmezumab",
		PDUFADate:    &pdufa,
		AnalysisDate: asOf,
		Clinical: domain.ClinicalInfo{
			Phase:              domain.Phase3,
			PrimaryEndpointMet: &met,
		},
		Manufacturing: domain.ManufacturingInfo{PAIStatus: domain.PAIPassed},
	}
}

func newRegistry(t *testing.T) *factor.Registry {
	t.Helper()
	reg, err := layers.NewDefaultRegistry(layers.DefaultConfig())
	require.NoError(t, err)
	return reg
}

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return New(newRegistry(t), WithClock(func() time.Time { return asOf }))
}

type countingRecorder struct {
	analyses      int
	layerFailures []string
	applied       map[string]int
}

func (c *countingRecorder) RecordAnalysis(time.Duration, domain.RiskTier) { c.analyses++ }
func (c *countingRecorder) RecordLayerFailure(layer string) {
	c.layerFailures = append(c.layerFailures, layer)
}
func (c *countingRecorder) RecordFactorApplied(name string) {
	if c.applied == nil {
		c.applied = make(map[string]int)
	}
	c.applied[name]++
}

func TestAnalyze_EndToEndScenarios(t *testing.T) {
	a := newAnalyzer(t)

	tests := []struct {
		name  string
		setup func(*domain.AnalysisContext)
		want  float64
		max   float64
	}{
		{"ticker only", func(*domain.AnalysisContext) {}, 0.70, 1},
		{"breakthrough only", func(c *domain.AnalysisContext) {
			c.Designations.BreakthroughTherapy = true
		}, 0.78, 1},
		{"three designations", func(c *domain.AnalysisContext) {
			c.Designations = domain.FDADesignations{BreakthroughTherapy: true, PriorityReview: true, OrphanDrug: true}
		}, 0.78, 1},
		{"all designations and SPA", func(c *domain.AnalysisContext) {
			c.Designations = domain.FDADesignations{
				BreakthroughTherapy: true, PriorityReview: true, FastTrack: true,
				OrphanDrug: true, AcceleratedApproval: true, FirstInClass: true,
			}
			c.Clinical.SPAAgreed = true
		}, 0.90, 1},
		{"warning letter only", func(c *domain.AnalysisContext) {
			c.Manufacturing.HasWarningLetter = true
		}, 0.25, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContext()
			tt.setup(ctx)
			res := a.Analyze(ctx)
			assert.InDelta(t, tt.want, res.Probability, 0.01)
			assert.LessOrEqual(t, res.Probability, tt.max)
			assert.InDelta(t, 0.70, res.BaseProbability, 1e-9)
		})
	}
}

func TestAnalyze_CeilingIsExact(t *testing.T) {
	a := newAnalyzer(t)
	ctx := newContext()
	ctx.Designations = domain.FDADesignations{
		BreakthroughTherapy: true, PriorityReview: true, FastTrack: true,
		OrphanDrug: true, AcceleratedApproval: true, FirstInClass: true,
	}
	ctx.Clinical.SPAAgreed = true

	res := a.Analyze(ctx)
	assert.Equal(t, 0.90, res.Probability)
	assert.Equal(t, 0.10, res.CRLProbability())
	assert.Equal(t, domain.RiskLow, res.RiskTier())

	met := true
	ctx.Clinical.PrimaryEndpointMet = &met
	ctx.Manufacturing.PAIStatus = domain.PAIPassed
	res = a.Analyze(ctx)
	assert.Equal(t, 0.90, res.Probability)
	capLayer, ok := res.Layer(factor.LayerCap)
	require.True(t, ok)
	assert.Less(t, capLayer.TotalAdjustment, 0.0)
}

func TestAnalyze_NilContext(t *testing.T) {
	a := newAnalyzer(t)

	var res Result
	require.NotPanics(t, func() { res = a.Analyze(nil) })
	assert.InDelta(t, 0.70, res.Probability, 1e-9)
	assert.Equal(t, 0.1, res.Confidence)
	assert.Contains(t, res.Warnings, WarnNoContext)
	assert.InDelta(t, 0.70, a.AnalyzeQuick(nil), 1e-9)
}

func TestAnalyze_BoundsWithoutHardCaps(t *testing.T) {
	a := newAnalyzer(t)

	worst := newContext()
	worst.Clinical.SingleArm = true
	worst.Clinical.MentalHealthIndication = true
	worst.Clinical.HasClinicalHold = true
	worst.Manufacturing.PAIStatus = domain.PAIFailed
	worst.Manufacturing.Form483Observations = 15
	worst.CRLHistory = []domain.CRLInfo{{Type: domain.CRLTypeEfficacy}, {Type: domain.CRLTypeSafety}}
	worst.Dispute = domain.DisputeInfo{HasDispute: true, Outcome: domain.DisputeLost}
	worst.CitizenPetition = domain.CitizenPetitionInfo{Filed: true, Status: domain.PetitionGranted}

	res := a.Analyze(worst)
	assert.InDelta(t, 0.10, res.Probability, 1e-9)
	assert.Empty(t, res.BindingCap)

	best := fullContext()
	best.Designations.BreakthroughTherapy = true
	best.Clinical.SPAAgreed = true
	best.Dispute = domain.DisputeInfo{HasDispute: true, Outcome: domain.DisputeWon}
	best.AdCom = domain.AdComInfo{WasHeld: true, VotesFor: 12, VotesTotal: 12, VoteDate: &asOf}

	res = a.Analyze(best)
	assert.InDelta(t, 0.90, res.Probability, 1e-9)
}

func TestAnalyze_CatastrophicCapDominates(t *testing.T) {
	ctx := fullContext()
	failed := false
	ctx.Clinical.PrimaryEndpointMet = &failed
	ctx.Clinical.SPAAgreed = true
	ctx.Designations = domain.FDADesignations{BreakthroughTherapy: true, PriorityReview: true}
	ctx.AdCom = domain.AdComInfo{WasHeld: true, VotesFor: 10, VotesTotal: 11, VoteDate: &asOf}

	res := newAnalyzer(t).Analyze(ctx)
	assert.LessOrEqual(t, res.Probability, 0.05)
	assert.Equal(t, layers.CapCatastrophic, res.BindingCap)
	assert.Equal(t, domain.RiskHigh, res.RiskTier())
	assert.True(t, res.PredictsCRL())
}

func TestAnalyze_LayerSummaries(t *testing.T) {
	ctx := newContext()
	ctx.Designations.BreakthroughTherapy = true
	ctx.Designations.PriorityReview = true
	ctx.Manufacturing.HasWarningLetter = true
	ctx.Manufacturing.WarningLetterDate = func() *time.Time { d := asOf.AddDate(0, 0, -30); return &d }()

	res := newAnalyzer(t).Analyze(ctx)
	require.Len(t, res.Layers, len(factor.Layers()))

	for i, s := range res.Layers {
		assert.Equal(t, factor.Layers()[i], s.Layer)
		assert.InDelta(t, s.Input+s.TotalAdjustment, s.Output, 1e-9)
		if i > 0 {
			assert.InDelta(t, res.Layers[i-1].Output, s.Input, 1e-9)
		}
	}

	desig, ok := res.Layer(factor.LayerDesignation)
	require.True(t, ok)
	require.Len(t, desig.Factors, 1)
	assert.Equal(t, "breakthrough_therapy", desig.Factors[0].Name)
	assert.Equal(t, 6, desig.Evaluated)

	// 0.70 + 0.08 - 0.15 = 0.63, capped to 0.25 by the severe cap
	assert.InDelta(t, 0.25, res.Probability, 1e-9)
	assert.Equal(t, layers.CapSevere, res.BindingCap)
	assert.Equal(t, []string{layers.FactorBaseRate, "breakthrough_therapy", layers.FactorWarningLetter, layers.FactorHardCaps}, res.FactorNames())
}

func TestAnalyze_FailingLayerIsIsolated(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.Register(factor.Info{Name: "flaky_source", Layer: factor.LayerClinical, Order: 99},
		func(*domain.AnalysisContext, float64) (factor.Result, error) {
			return factor.Result{}, errors.New("source unavailable")
		}))
	require.NoError(t, reg.Register(factor.Info{Name: "exploding", Layer: factor.LayerEarnings, Order: 99},
		func(*domain.AnalysisContext, float64) (factor.Result, error) {
			panic("nil map")
		}))

	rec := &countingRecorder{}
	a := New(reg, WithRecorder(rec), WithClock(func() time.Time { return asOf }))

	ctx := newContext()
	// both adjustments are lost with their failing layers
	ctx.Clinical.SingleArm = true
	ctx.EarningsCall.LaunchPreparationMentioned = true
	ctx.Dispute = domain.DisputeInfo{HasDispute: true, Outcome: domain.DisputeWon}

	res := a.Analyze(ctx)
	assert.InDelta(t, 0.80, res.Probability, 1e-9)

	clinical, ok := res.Layer(factor.LayerClinical)
	require.True(t, ok)
	assert.True(t, clinical.Failed)
	assert.Empty(t, clinical.Factors)
	assert.Equal(t, clinical.Input, clinical.Output)

	earnings, _ := res.Layer(factor.LayerEarnings)
	assert.True(t, earnings.Failed)
	assert.Contains(t, earnings.Error, "panic")

	assert.Contains(t, res.Warnings, "layer clinical failed: factor flaky_source (clinical): source unavailable")
	assert.ElementsMatch(t, []string{"clinical", "earnings"}, rec.layerFailures)
	assert.Equal(t, 1, rec.analyses)
	assert.Equal(t, 1, rec.applied[layers.FactorDispute])
}

func TestAnalyze_DisabledFactor(t *testing.T) {
	a := newAnalyzer(t)
	ctx := newContext()
	ctx.Designations.BreakthroughTherapy = true

	require.True(t, a.Registry().Disable("breakthrough_therapy", "calibration experiment"))
	assert.InDelta(t, 0.70, a.AnalyzeQuick(ctx), 1e-9)

	require.True(t, a.Registry().Enable("breakthrough_therapy", "done"))
	assert.InDelta(t, 0.78, a.AnalyzeQuick(ctx), 1e-9)
}

func TestAnalyze_StructuralFactorsStayEnabled(t *testing.T) {
	a := newAnalyzer(t)
	ctx := newContext()
	ctx.Designations.BreakthroughTherapy = true
	missed := false
	ctx.Clinical.PrimaryEndpointMet = &missed

	for _, name := range []string{layers.FactorHardCaps, layers.FactorBaseRate} {
		assert.False(t, a.Registry().Disable(name, "ops"), name)
		info, ok := a.GetFactorInfo(name)
		require.True(t, ok)
		assert.True(t, info.Enabled, name)
		assert.True(t, info.Required, name)
	}

	res := a.Analyze(ctx)
	assert.LessOrEqual(t, res.Probability, 0.05)
	assert.NotEmpty(t, res.BindingCap)
	assert.InDelta(t, 0.70, res.BaseProbability, 1e-9)
}

func TestAnalyze_Confidence(t *testing.T) {
	a := newAnalyzer(t)

	res := a.Analyze(fullContext())
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Empty(t, res.Warnings)

	// ticker only: completeness 1/6, recency 1, factor mean 1
	res = a.Analyze(newContext())
	assert.InDelta(t, 0.4/6+0.3+0.3, res.Confidence, 1e-9)
	assert.Contains(t, res.Warnings, "incomplete data: 17%")
}

func TestAnalyze_RecencyWarnings(t *testing.T) {
	ctx := fullContext()
	passed := asOf.AddDate(0, 0, -10)
	ctx.PDUFADate = &passed
	voted := asOf.AddDate(0, 0, -200)
	ctx.AdCom = domain.AdComInfo{WasHeld: true, VotesFor: 9, VotesTotal: 10, VoteDate: &voted}
	ctx.Manufacturing.HasWarningLetter = true

	res := newAnalyzer(t).Analyze(ctx)
	assert.Contains(t, res.Warnings, "PDUFA date passed 10 days ago")
	assert.Contains(t, res.Warnings, "AdCom 200 days ago (stale)")
	assert.Contains(t, res.Warnings, "warning_letter applied without a date")

	// recency 1 - 0.3 - 0.2 - 0.2 = 0.3; completeness 7/7
	var sum float64
	for _, f := range res.Factors {
		sum += f.Confidence
	}
	mean := sum / float64(len(res.Factors))
	assert.InDelta(t, 0.4+0.3*0.3+0.3*mean, res.Confidence, 1e-9)
	assert.GreaterOrEqual(t, res.Confidence, 0.1)
}

func TestAnalyzeWithScenarios(t *testing.T) {
	a := newAnalyzer(t)
	base := newContext()

	withBTD := *base
	withBTD.Designations.BreakthroughTherapy = true
	withWL := *base
	withWL.Manufacturing.HasWarningLetter = true

	out, err := a.AnalyzeWithScenarios(base, map[string]*domain.AnalysisContext{
		"warning_letter": &withWL,
		"breakthrough":   &withBTD,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"breakthrough", "warning_letter"}, out.Order)
	assert.InDelta(t, 0.70, out.Base.Probability, 1e-9)

	d, ok := out.Delta("breakthrough")
	require.True(t, ok)
	assert.InDelta(t, 0.08, d, 1e-9)

	d, _ = out.Delta("warning_letter")
	assert.InDelta(t, -0.45, d, 1e-9)

	_, ok = out.Delta("missing")
	assert.False(t, ok)

	// the base context is untouched by variant construction
	assert.False(t, base.Designations.BreakthroughTherapy)

	_, err = a.AnalyzeWithScenarios(base, map[string]*domain.AnalysisContext{BaseScenario: base})
	assert.ErrorIs(t, err, ErrReservedScenario)
}

func TestSimulateFactorAndIntrospection(t *testing.T) {
	a := newAnalyzer(t)
	ctx := newContext()
	ctx.AdCom = domain.AdComInfo{WasHeld: true, VotesFor: 3, VotesTotal: 10}

	res, err := a.SimulateFactor(layers.FactorAdComVote, ctx, 0.7)
	require.NoError(t, err)
	assert.InDelta(t, layers.AdjAdComNegative, res.Adjustment, 1e-9)

	_, err = a.SimulateFactor("nope", ctx, 0.7)
	assert.ErrorIs(t, err, factor.ErrUnknownFactor)

	info, ok := a.GetFactorInfo(layers.FactorHardCaps)
	require.True(t, ok)
	assert.Equal(t, factor.LayerCap, info.Layer)

	list := a.ListRegisteredFactors()
	assert.Equal(t, layers.FactorBaseRate, list[0].Name)
	assert.Equal(t, layers.FactorHardCaps, list[len(list)-1].Name)
}
