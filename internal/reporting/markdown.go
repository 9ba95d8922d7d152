package reporting

import (
	"fmt"
	"strings"
	"time"

	"pdufa-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	run := r.Run

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Started: %s | Completed: %s\n\n",
		run.RunID, run.StartedAt.Format(time.RFC3339), run.CompletedAt.Format(time.RFC3339)))
	if run.Notes != "" {
		sb.WriteString(fmt.Sprintf("Notes: %s\n\n", run.Notes))
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Events | %d |\n", run.TotalEvents))
	sb.WriteString(fmt.Sprintf("| Evaluated | %d |\n", run.Evaluated))
	sb.WriteString(fmt.Sprintf("| Skipped | %d |\n", run.Skipped))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", run.Failed))
	sb.WriteString(fmt.Sprintf("| Precision | %.4f |\n", run.Precision))
	sb.WriteString(fmt.Sprintf("| Recall | %.4f |\n", run.Recall))
	sb.WriteString(fmt.Sprintf("| F1 | %.4f |\n", run.F1))
	sb.WriteString(fmt.Sprintf("| Accuracy | %.4f |\n", run.Accuracy))
	sb.WriteString(fmt.Sprintf("| Brier Score | %.4f |\n", run.BrierScore))
	sb.WriteString("\n")

	sb.WriteString("## Confusion Matrix\n\n")
	sb.WriteString("Positive class: CRL.\n\n")
	sb.WriteString("| | Actual CRL | Actual Approved |\n")
	sb.WriteString("|---|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Predicted CRL | %d | %d |\n", run.TruePositives, run.FalsePositives))
	sb.WriteString(fmt.Sprintf("| Predicted Approved | %d | %d |\n", run.FalseNegatives, run.TrueNegatives))
	sb.WriteString("\n")

	sb.WriteString("## Risk Tiers\n\n")
	if len(run.Tiers) > 0 {
		sb.WriteString("| Tier | Events | CRLs | Observed CRL Rate | Mean CRL Probability |\n")
		sb.WriteString("|------|--------|------|-------------------|----------------------|\n")
		for _, t := range run.Tiers {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.4f |\n",
				t.Tier, t.Count, t.CRLs, t.ObservedCRLRate, t.MeanCRLProbability))
		}
	} else {
		sb.WriteString("No tier data available.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Calibration\n\n")
	if len(r.Calibration) > 0 {
		sb.WriteString("| Bucket | Events | CRLs | Mean CRL Probability | Observed CRL Rate |\n")
		sb.WriteString("|--------|--------|------|----------------------|-------------------|\n")
		for _, b := range r.Calibration {
			if b.Count == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %.2f-%.2f | %d | %d | %.4f | %.4f |\n",
				b.Lower, b.Upper, b.Count, b.CRLs, b.MeanCRLProbability, b.ObservedCRLRate))
		}
	} else {
		sb.WriteString("No calibration data available.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Binding Caps\n\n")
	if len(r.BindingCaps) > 0 {
		sb.WriteString("| Cap | Events | CRLs |\n")
		sb.WriteString("|-----|--------|------|\n")
		for _, c := range r.BindingCaps {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", c.Cap, c.Events, c.CRLs))
		}
	} else {
		sb.WriteString("No hard cap bound any evaluated event.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Model Gate\n\n")
	switch {
	case r.Gate != nil:
		sb.WriteString(fmt.Sprintf("**Decision: %s**\n\n", r.Gate.Decision))
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, c := range r.Gate.Criteria {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, passFail(c.Pass)))
		}
		for _, c := range r.Gate.Blockers {
			status := "OK"
			if !c.Pass {
				status = "TRIGGERED"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status))
		}
	case r.GateError != "":
		sb.WriteString(fmt.Sprintf("Gate not evaluated: %s\n", r.GateError))
	default:
		sb.WriteString("Gate not configured.\n")
	}
	sb.WriteString("\n")

	if len(r.DataQuality.IntegrityErrors) > 0 {
		sb.WriteString("## Data Quality\n\n")
		for _, e := range r.DataQuality.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Events\n\n")
	if len(r.Events) > 0 {
		sb.WriteString("| Event | Ticker | Drug | PDUFA | P(approval) | Tier | Confidence | Cap | Predicted | Actual | Correct |\n")
		sb.WriteString("|-------|--------|------|-------|-------------|------|------------|-----|-----------|--------|---------|\n")
		for _, e := range r.Events {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.4f | %s | %.2f | %s | %s | %s | %s |\n",
				e.EventID, e.Ticker, e.DrugName, formatDate(e.PDUFADate), e.Probability, e.RiskTier,
				e.Confidence, dash(e.BindingCap), predicted(e.PredictedCRL), e.Actual, correct(e)))
		}
	} else {
		sb.WriteString("No events scored.\n")
	}
	sb.WriteString("\n")

	if len(r.Excluded) > 0 {
		sb.WriteString("## Excluded Events\n\n")
		sb.WriteString("| Event | Ticker | Status | Reason |\n")
		sb.WriteString("|-------|--------|--------|--------|\n")
		for _, e := range r.Excluded {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", e.EventID, e.Ticker, e.Status, dash(e.Reason)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func predicted(crl bool) string {
	if crl {
		return string(domain.OutcomeCRL)
	}
	return string(domain.OutcomeApproved)
}

func correct(e EventRow) string {
	if !e.Actual.IsResolved() {
		return "-"
	}
	if e.Correct() {
		return "yes"
	}
	return "no"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
