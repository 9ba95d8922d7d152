package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/app"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/loader"
)

var flags struct {
	configPath string
	envFile    string
	asOf       string
	scenarios  map[string]string
	factor     string
	current    float64
	quick      bool
	json       bool
}

var rootCmd = &cobra.Command{
	Use:   "analyze <record.json|->",
	Short: "Score one PDUFA event record",
	Long: `Analyze loads one event record, runs it through every enabled factor layer
and prints the approval probability with its breakdown.

Scenarios are partial records overlaid on the base record:
  analyze event.json --scenario no_adcom=patches/no_adcom.json`,
	Args: cobra.ExactArgs(1),
	RunE: run,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "Path to YAML config")
	f.StringVar(&flags.envFile, "env-file", app.DefaultEnvFile, "Env file loaded before config")
	f.StringVar(&flags.asOf, "as-of", "", "Analysis date YYYY-MM-DD (default today)")
	f.StringToStringVar(&flags.scenarios, "scenario", nil, "Named scenario as name=patch.json (repeatable)")
	f.StringVar(&flags.factor, "factor", "", "Evaluate a single factor instead of the full model")
	f.Float64Var(&flags.current, "current", 0.70, "Input probability for --factor")
	f.BoolVar(&flags.quick, "quick", false, "Print the probability only")
	f.BoolVar(&flags.json, "json", false, "Output as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, logger, err := app.Load(flags.envFile, flags.configPath)
	if err != nil {
		return err
	}
	a, err := app.NewAnalyzer(cfg.Engine, logger, nil)
	if err != nil {
		return err
	}

	raw, err := readInput(args[0])
	if err != nil {
		return err
	}
	rec, err := loader.ParseRecord(raw)
	if err != nil {
		return err
	}
	at := time.Now().UTC()
	if flags.asOf != "" {
		d, err := domain.ParseDate(flags.asOf)
		if err != nil {
			return fmt.Errorf("--as-of: %w", err)
		}
		at = d.Time
	}
	ctx, err := loader.ToContext(rec, at)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case flags.factor != "":
		res, err := a.SimulateFactor(flags.factor, ctx, flags.current)
		if err != nil {
			return err
		}
		if flags.json {
			return writeJSON(out, res)
		}
		fmt.Fprintf(out, "%s: applied=%t adjustment=%+.4f (%s)\n", res.Name, res.Applied, res.Adjustment, res.Reason)
		return nil

	case flags.quick:
		p := a.AnalyzeQuick(ctx)
		if flags.json {
			return writeJSON(out, map[string]any{"event_id": rec.EventID, "probability": p})
		}
		fmt.Fprintf(out, "%.4f\n", p)
		return nil

	case len(flags.scenarios) > 0:
		variants := make(map[string]*domain.AnalysisContext, len(flags.scenarios))
		for name, path := range flags.scenarios {
			v, err := loadVariant(raw, path, at)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", name, err)
			}
			variants[name] = v
		}
		res, err := a.AnalyzeWithScenarios(ctx, variants)
		if err != nil {
			return err
		}
		if flags.json {
			return writeJSON(out, res)
		}
		printResult(out, rec.EventID, &res.Base)
		printScenarios(out, &res)
		return nil
	}

	res := a.Analyze(ctx)
	if flags.json {
		return writeJSON(out, res.Record(rec.EventID, "", ctx.PDUFADate, rec.Outcome))
	}
	printResult(out, rec.EventID, &res)
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// loadVariant overlays the patch file on the base record JSON.
func loadVariant(base []byte, patchPath string, at time.Time) (*domain.AnalysisContext, error) {
	patch, err := os.ReadFile(patchPath)
	if err != nil {
		return nil, err
	}
	var rec domain.EventRecord
	if err := json.Unmarshal(base, &rec); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patch, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", patchPath, err)
	}
	return loader.ToContext(rec, at)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult outputs a human-readable analysis.
func printResult(w io.Writer, eventID string, r *analyzer.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== PDUFA Analysis ===")
	fmt.Fprintf(w, "Event ID:           %s\n", eventID)
	fmt.Fprintf(w, "Ticker:             %s\n", r.Ticker)
	fmt.Fprintf(w, "Drug:               %s\n", r.DrugName)
	fmt.Fprintf(w, "Analyzed At:        %s\n", r.AnalyzedAt.Format(time.RFC3339))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Result:")
	fmt.Fprintf(w, "  Approval:         %.1f%%\n", r.Probability*100)
	fmt.Fprintf(w, "  CRL:              %.1f%%\n", r.CRLProbability()*100)
	fmt.Fprintf(w, "  Risk Tier:        %s\n", r.RiskTier())
	fmt.Fprintf(w, "  Confidence:       %.2f\n", r.Confidence)
	if r.BindingCap != "" {
		fmt.Fprintf(w, "  Binding Cap:      %s\n", r.BindingCap)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Layers:")
	for _, l := range r.Layers {
		status := ""
		if l.Failed {
			status = " FAILED: " + l.Error
		}
		fmt.Fprintf(w, "  %-16s %.3f -> %.3f (%+.3f)%s\n", l.Layer, l.Input, l.Output, l.TotalAdjustment, status)
		for _, f := range l.Factors {
			fmt.Fprintf(w, "    %-28s %+.3f  %s\n", f.Name, f.Adjustment, f.Reason)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
}

func printScenarios(w io.Writer, s *analyzer.ScenarioResults) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Scenarios:")
	names := append([]string(nil), s.Order...)
	sort.Strings(names)
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	for _, n := range names {
		delta, _ := s.Delta(n)
		r := s.Scenarios[n]
		fmt.Fprintf(w, "  %s  %.1f%% (%+.1f pts)  %s\n", n+strings.Repeat(" ", width-len(n)), r.Probability*100, delta*100, r.RiskTier())
	}
}
