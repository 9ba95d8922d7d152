package metrics

import (
	"math"
	"testing"

	"pdufa-lab/internal/domain"
)

func makeAnalysis(eventID string, crlProb float64, outcome domain.Outcome) *domain.AnalysisRecord {
	return &domain.AnalysisRecord{
		AnalysisID:     "a-" + eventID,
		EventID:        eventID,
		RunID:          "run",
		Probability:    1 - crlProb,
		CRLProbability: crlProb,
		RiskTier:       domain.TierFor(crlProb),
		PredictedCRL:   crlProb >= domain.CRLThreshold,
		ActualOutcome:  outcome,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompute_ConfusionMatrix(t *testing.T) {
	records := []*domain.AnalysisRecord{
		makeAnalysis("tp1", 0.80, domain.OutcomeCRL),
		makeAnalysis("tp2", 0.55, domain.OutcomeCRL),
		makeAnalysis("fp", 0.60, domain.OutcomeApproved),
		makeAnalysis("fn", 0.20, domain.OutcomeCRL),
		makeAnalysis("tn1", 0.10, domain.OutcomeApproved),
		makeAnalysis("tn2", 0.35, domain.OutcomeApproved),
		makeAnalysis("pending", 0.90, domain.OutcomePending),
	}

	s := Compute(records, 0)

	want := ConfusionMatrix{TruePositives: 2, FalsePositives: 1, TrueNegatives: 2, FalseNegatives: 1}
	if s.Confusion != want {
		t.Fatalf("confusion = %+v, want %+v", s.Confusion, want)
	}
	if !approxEqual(s.Precision, 2.0/3.0) {
		t.Errorf("precision = %f, want 0.667", s.Precision)
	}
	if !approxEqual(s.Recall, 2.0/3.0) {
		t.Errorf("recall = %f, want 0.667", s.Recall)
	}
	if !approxEqual(s.F1, 2.0/3.0) {
		t.Errorf("f1 = %f, want 0.667", s.F1)
	}
	if !approxEqual(s.Accuracy, 4.0/6.0) {
		t.Errorf("accuracy = %f, want 0.667", s.Accuracy)
	}
}

func TestCompute_NoPositivePredictions(t *testing.T) {
	s := Compute([]*domain.AnalysisRecord{
		makeAnalysis("a", 0.10, domain.OutcomeCRL),
		makeAnalysis("b", 0.20, domain.OutcomeApproved),
	}, 0)

	if s.Precision != 0 || s.Recall != 0 || s.F1 != 0 {
		t.Errorf("expected zero precision/recall/f1, got %f/%f/%f", s.Precision, s.Recall, s.F1)
	}
	if !approxEqual(s.Accuracy, 0.5) {
		t.Errorf("accuracy = %f, want 0.5", s.Accuracy)
	}
}

func TestCompute_BrierScore(t *testing.T) {
	// (0.8-1)^2 = 0.04, (0.3-0)^2 = 0.09 -> mean 0.065
	s := Compute([]*domain.AnalysisRecord{
		makeAnalysis("a", 0.8, domain.OutcomeCRL),
		makeAnalysis("b", 0.3, domain.OutcomeApproved),
	}, 0)
	if !approxEqual(s.BrierScore, 0.065) {
		t.Errorf("brier = %f, want 0.065", s.BrierScore)
	}

	if empty := Compute(nil, 0); empty.BrierScore != 0 || empty.Confusion.Total() != 0 {
		t.Errorf("expected zero summary for no records, got %+v", empty)
	}
}

func TestCompute_TierStats(t *testing.T) {
	s := Compute([]*domain.AnalysisRecord{
		makeAnalysis("h1", 0.70, domain.OutcomeCRL),
		makeAnalysis("h2", 0.50, domain.OutcomeApproved),
		makeAnalysis("e1", 0.30, domain.OutcomeCRL),
		makeAnalysis("l1", 0.05, domain.OutcomeApproved),
	}, 0)

	if len(s.Tiers) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(s.Tiers))
	}
	high := s.Tiers[0]
	if high.Tier != domain.RiskHigh || high.Count != 2 || high.CRLs != 1 {
		t.Errorf("unexpected HIGH tier: %+v", high)
	}
	if !approxEqual(high.ObservedCRLRate, 0.5) || !approxEqual(high.MeanCRLProbability, 0.6) {
		t.Errorf("unexpected HIGH rates: %+v", high)
	}
	if s.Tiers[1].Tier != domain.RiskElevated || s.Tiers[1].Count != 1 {
		t.Errorf("unexpected ELEVATED tier: %+v", s.Tiers[1])
	}
	moderate := s.Tiers[2]
	if moderate.Count != 0 || moderate.ObservedCRLRate != 0 || moderate.MeanCRLProbability != 0 {
		t.Errorf("empty MODERATE tier should be zero: %+v", moderate)
	}
}

func TestCompute_Calibration(t *testing.T) {
	s := Compute([]*domain.AnalysisRecord{
		makeAnalysis("a", 0.05, domain.OutcomeApproved),
		makeAnalysis("b", 0.95, domain.OutcomeCRL),
		makeAnalysis("c", 1.00, domain.OutcomeCRL),
		makeAnalysis("d", 0.50, domain.OutcomeApproved),
	}, 4)

	if len(s.Calibration) != 4 {
		t.Fatalf("expected 4 buckets, got %d", len(s.Calibration))
	}
	if s.Calibration[0].Count != 1 || s.Calibration[2].Count != 1 {
		t.Errorf("unexpected bucket counts: %+v", s.Calibration)
	}
	last := s.Calibration[3]
	if last.Count != 2 || last.CRLs != 2 || !approxEqual(last.ObservedCRLRate, 1) {
		t.Errorf("probability 1.0 must land in the closed last bucket: %+v", last)
	}
	if last.Upper != 1 {
		t.Errorf("last bucket upper = %f, want 1", last.Upper)
	}
}

func TestCompute_OrderIndependent(t *testing.T) {
	a := []*domain.AnalysisRecord{
		makeAnalysis("x", 0.61, domain.OutcomeCRL),
		makeAnalysis("y", 0.13, domain.OutcomeApproved),
		makeAnalysis("z", 0.47, domain.OutcomeCRL),
	}
	b := []*domain.AnalysisRecord{a[2], a[0], a[1]}

	sa, sb := Compute(a, 0), Compute(b, 0)
	if sa.BrierScore != sb.BrierScore || sa.Confusion != sb.Confusion {
		t.Errorf("results depend on input order: %+v vs %+v", sa, sb)
	}
}

func TestSummary_ApplyTo(t *testing.T) {
	s := Compute([]*domain.AnalysisRecord{makeAnalysis("a", 0.8, domain.OutcomeCRL)}, 0)

	var run domain.BacktestRun
	s.ApplyTo(&run)
	if run.TruePositives != 1 || run.Precision != 1 || run.Recall != 1 || len(run.Tiers) != 4 {
		t.Errorf("unexpected run after ApplyTo: %+v", run)
	}
}
