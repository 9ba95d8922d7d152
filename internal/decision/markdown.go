package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a gate Result as Markdown.
func RenderMarkdown(result *Result) string {
	var sb strings.Builder

	sb.WriteString("# Model Gate Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", result.RunID))
	sb.WriteString(fmt.Sprintf("## Decision: %s\n\n", result.Decision))

	sb.WriteString("## Criteria\n\n")
	sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
	sb.WriteString("|---|-----------|-----------|--------|------|\n")
	passed := 0
	for i, c := range result.Criteria {
		status := "FAIL"
		if c.Pass {
			status = "PASS"
			passed++
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, status))
	}
	sb.WriteString(fmt.Sprintf("\nCriteria: %d/%d passed\n\n", passed, len(result.Criteria)))

	sb.WriteString("## Blockers\n\n")
	sb.WriteString("| # | Blocker | Condition | Actual | Status |\n")
	sb.WriteString("|---|---------|-----------|--------|--------|\n")
	triggered := 0
	for i, c := range result.Blockers {
		status := "NOT TRIGGERED"
		if !c.Pass {
			status = "TRIGGERED"
			triggered++
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			i+1, c.Name, c.Threshold, c.Actual, status))
	}
	sb.WriteString(fmt.Sprintf("\nBlockers: %d/%d triggered\n\n", triggered, len(result.Blockers)))

	sb.WriteString("## Summary\n\n")
	if result.Decision == DecisionPass {
		sb.WriteString("All criteria passed and no blockers triggered.\n")
		return sb.String()
	}
	sb.WriteString("Decision is FAIL due to:\n")
	for _, c := range result.Criteria {
		if !c.Pass {
			sb.WriteString(fmt.Sprintf("- criterion failed: %s (actual: %s)\n", c.Name, c.Actual))
		}
	}
	for _, c := range result.Blockers {
		if !c.Pass {
			sb.WriteString(fmt.Sprintf("- blocker triggered: %s (actual: %s)\n", c.Name, c.Actual))
		}
	}
	return sb.String()
}
