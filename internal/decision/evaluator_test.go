package decision

import (
	"errors"
	"strings"
	"testing"

	"pdufa-lab/internal/domain"
)

func goodInput() *Input {
	return &Input{
		RunID:           "run-1",
		Evaluated:       40,
		TruePositives:   8,
		FalsePositives:  4,
		TrueNegatives:   24,
		FalseNegatives:  4,
		Precision:       0.6667,
		Recall:          0.6667,
		F1:              0.6667,
		BrierScore:      0.12,
		HighTierCRLRate: 0.6,
		LowTierCRLRate:  0.05,
	}
}

func TestEvaluate_Pass(t *testing.T) {
	result, err := NewEvaluator(DefaultCriteria()).Evaluate(goodInput())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Decision != DecisionPass {
		t.Errorf("expected PASS, got %s", result.Decision)
	}
	for i, c := range result.Criteria {
		if !c.Pass {
			t.Errorf("criterion %d (%s) should pass", i+1, c.Name)
		}
	}
	for i, c := range result.Blockers {
		if !c.Pass {
			t.Errorf("blocker %d (%s) should not trigger", i+1, c.Name)
		}
	}
}

func TestEvaluate_Fail(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
		failed string
	}{
		{"small sample", func(in *Input) {
			in.Evaluated, in.TrueNegatives = 10, 0
			in.TruePositives, in.FalsePositives, in.FalseNegatives = 4, 2, 4
		}, "Sample size"},
		{"low precision", func(in *Input) { in.Precision = 0.1 }, "Precision"},
		{"low recall", func(in *Input) { in.Recall = 0.2 }, "Recall"},
		{"low f1", func(in *Input) { in.F1 = 0.3 }, "F1"},
		{"poor calibration", func(in *Input) { in.BrierScore = 0.35 }, "Brier score"},
		{"silent model", func(in *Input) {
			in.TruePositives, in.FalsePositives = 0, 0
			in.TrueNegatives, in.FalseNegatives = 28, 12
		}, "Never predicts CRL"},
		{"alarmist model", func(in *Input) {
			in.TruePositives, in.FalsePositives = 12, 28
			in.TrueNegatives, in.FalseNegatives = 0, 0
		}, "Predicts CRL for every event"},
		{"inverted tiers", func(in *Input) { in.HighTierCRLRate, in.LowTierCRLRate = 0.1, 0.4 }, "Tier ordering inverted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := goodInput()
			tt.mutate(in)

			result, err := NewEvaluator(DefaultCriteria()).Evaluate(in)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result.Decision != DecisionFail {
				t.Fatalf("expected FAIL, got %s", result.Decision)
			}

			found := false
			for _, c := range append(result.Criteria, result.Blockers...) {
				if c.Name == tt.failed && !c.Pass {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %q to fail", tt.failed)
			}
		})
	}
}

func TestEvaluate_EmptyTierSkipsOrderingCheck(t *testing.T) {
	in := goodInput()
	in.LowTierCRLRate = -1

	result, err := NewEvaluator(DefaultCriteria()).Evaluate(in)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	last := result.Blockers[len(result.Blockers)-1]
	if !last.Pass || last.Actual != "n/a" {
		t.Errorf("expected ordering check skipped, got %+v", last)
	}
}

func TestEvaluate_InvalidInput(t *testing.T) {
	e := NewEvaluator(DefaultCriteria())

	in := goodInput()
	in.RunID = ""
	if _, err := e.Evaluate(in); !errors.Is(err, ErrEmptyRunID) {
		t.Errorf("expected ErrEmptyRunID, got %v", err)
	}

	in = goodInput()
	in.TrueNegatives++
	if _, err := e.Evaluate(in); !errors.Is(err, ErrCountsDiffer) {
		t.Errorf("expected ErrCountsDiffer, got %v", err)
	}

	in = goodInput()
	in.BrierScore = 1.5
	if _, err := e.Evaluate(in); !errors.Is(err, ErrBadRatio) {
		t.Errorf("expected ErrBadRatio, got %v", err)
	}

	if _, err := e.Evaluate(nil); err == nil {
		t.Error("expected error for nil input")
	}
}

func TestFromRun(t *testing.T) {
	run := &domain.BacktestRun{
		RunID:         "run-7",
		Evaluated:     3,
		TruePositives: 1,
		TrueNegatives: 2,
		Precision:     1,
		Recall:        1,
		F1:            1,
		BrierScore:    0.05,
		Tiers: []domain.TierStats{
			{Tier: domain.RiskHigh, Count: 1, CRLs: 1, ObservedCRLRate: 1},
			{Tier: domain.RiskElevated},
			{Tier: domain.RiskModerate},
			{Tier: domain.RiskLow},
		},
	}

	in, err := FromRun(run)
	if err != nil {
		t.Fatalf("FromRun failed: %v", err)
	}
	if in.HighTierCRLRate != 1 {
		t.Errorf("HighTierCRLRate = %v, want 1", in.HighTierCRLRate)
	}
	if in.LowTierCRLRate != -1 {
		t.Errorf("empty LOW tier should be -1, got %v", in.LowTierCRLRate)
	}

	if _, err := FromRun(&domain.BacktestRun{RunID: "empty"}); !errors.Is(err, ErrNoEvaluated) {
		t.Errorf("expected ErrNoEvaluated, got %v", err)
	}
}

func TestCriteria_Validate(t *testing.T) {
	if err := DefaultCriteria().Validate(); err != nil {
		t.Errorf("default criteria invalid: %v", err)
	}
	c := DefaultCriteria()
	c.MinRecall = 1.5
	if err := c.Validate(); err == nil {
		t.Error("expected error for recall threshold > 1")
	}
	c = DefaultCriteria()
	c.MinEvaluated = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for zero sample size")
	}
}

func TestRenderMarkdown(t *testing.T) {
	in := goodInput()
	in.Recall = 0.1
	result, err := NewEvaluator(DefaultCriteria()).Evaluate(in)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	md := RenderMarkdown(result)
	for _, want := range []string{
		"# Model Gate Report",
		"## Decision: FAIL",
		"| 3 | Recall | >= 0.50 | 0.1000 | FAIL |",
		"Criteria: 4/5 passed",
		"Blockers: 0/3 triggered",
		"- criterion failed: Recall (actual: 0.1000)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}
