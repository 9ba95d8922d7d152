package analyzer

import (
	"time"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/factor"
)

// LayerSummary is one layer's contribution to the final probability.
// Output equals Input plus TotalAdjustment.
type LayerSummary struct {
	Layer           factor.Layer    `json:"layer"`
	Input           float64         `json:"input"`
	Output          float64         `json:"output"`
	TotalAdjustment float64         `json:"total_adjustment"`
	Factors         []factor.Result `json:"factors"`   // applied only
	Evaluated       int             `json:"evaluated"` // factors evaluated, neutral and superseded included
	Failed          bool            `json:"failed,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// Result is the output of one analysis.
type Result struct {
	Ticker          string          `json:"ticker"`
	DrugName        string          `json:"drug_name"`
	Probability     float64         `json:"probability"`      // always in [0,1]
	BaseProbability float64         `json:"base_probability"` // output of the base layer
	Factors         []factor.Result `json:"factors"`
	Layers          []LayerSummary  `json:"layers"`
	Confidence      float64         `json:"confidence"` // in [0.1, 1.0]
	Warnings        []string        `json:"warnings"`
	BindingCap      string          `json:"binding_cap,omitempty"` // tightest active hard cap, empty if none
	AnalyzedAt      time.Time       `json:"analyzed_at"`
}

// CRLProbability returns 1 - Probability.
func (r *Result) CRLProbability() float64 {
	return domain.RoundProbability(1 - r.Probability)
}

// RiskTier buckets the CRL probability.
func (r *Result) RiskTier() domain.RiskTier {
	return domain.TierFor(r.CRLProbability())
}

// PredictsCRL reports whether the CRL probability reaches the decision threshold.
func (r *Result) PredictsCRL() bool {
	return r.CRLProbability() >= domain.CRLThreshold
}

// FactorNames returns the names of the applied factors in evaluation order.
func (r *Result) FactorNames() []string {
	out := make([]string, 0, len(r.Factors))
	for _, f := range r.Factors {
		out = append(out, f.Name)
	}
	return out
}

// Layer returns the summary for one layer.
func (r *Result) Layer(l factor.Layer) (LayerSummary, bool) {
	for _, s := range r.Layers {
		if s.Layer == l {
			return s, true
		}
	}
	return LayerSummary{}, false
}

// ScenarioResults holds a base analysis and named variants.
type ScenarioResults struct {
	Base      Result            `json:"base"`
	Scenarios map[string]Result `json:"scenarios"`
	Order     []string          `json:"order"` // scenario names, sorted
}

// Delta returns a scenario's probability minus the base probability.
func (s *ScenarioResults) Delta(name string) (float64, bool) {
	r, ok := s.Scenarios[name]
	if !ok {
		return 0, false
	}
	return r.Probability - s.Base.Probability, true
}
