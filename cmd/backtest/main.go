package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pdufa-lab/internal/app"
	"pdufa-lab/internal/backtest"
	"pdufa-lab/internal/decision"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/loader"
	"pdufa-lab/internal/observability"
	"pdufa-lab/internal/pipeline"
)

var flags struct {
	configPath      string
	envFile         string
	dataDir         string
	fixtures        bool
	outputDir       string
	workers         int
	leadDays        int
	notes           string
	json            bool
	failOnGate      bool
	metricsTextfile string
}

// errGateFailed makes the process exit non-zero when --fail-on-gate is set.
var errGateFailed = errors.New("model gate failed")

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Score resolved PDUFA events and evaluate the model gate",
	Long: `Backtest analyzes every event with a known FDA outcome as of its PDUFA date
minus the configured lead, compares predictions with outcomes and writes
REPORT.md, events.csv, DECISION_GATE_REPORT.md and manifest.json under
<output-dir>/<run id>/.

Events come from --data-dir, --use-fixtures, or the configured event store.`,
	Args: cobra.NoArgs,
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
	f.StringVar(&flags.dataDir, "data-dir", "", "Directory of JSON records (default: backtest.data_dir, else the event store)")
	f.BoolVar(&flags.fixtures, "use-fixtures", false, "Backtest the built-in demo events")
	f.StringVar(&flags.outputDir, "output-dir", "", "Report directory (default: backtest.output_dir)")
	f.IntVar(&flags.workers, "workers", 0, "Parallel workers (default: backtest.workers)")
	f.IntVar(&flags.leadDays, "lead-days", -1, "Days before the PDUFA date to analyze as of (default: backtest.lead_days)")
	f.StringVar(&flags.notes, "notes", "", "Free-text note stored with the run")
	f.BoolVar(&flags.json, "json", false, "Print the run summary as JSON")
	f.BoolVar(&flags.failOnGate, "fail-on-gate", false, "Exit non-zero when the model gate fails")
	f.StringVar(&flags.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := app.Load(flags.envFile, flags.configPath)
	if err != nil {
		return err
	}
	if flags.outputDir != "" {
		cfg.Backtest.OutputDir = flags.outputDir
	}
	if flags.workers > 0 {
		cfg.Backtest.Workers = flags.workers
	}
	if flags.leadDays >= 0 {
		cfg.Backtest.LeadDays = flags.leadDays
	}
	if flags.notes != "" {
		cfg.Backtest.Notes = flags.notes
	}
	if flags.dataDir != "" {
		cfg.Backtest.DataDir = flags.dataDir
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	m := observability.NewMetrics("", prometheus.NewRegistry())

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	a, err := app.NewAnalyzer(cfg.Engine, logger, m)
	if err != nil {
		return err
	}
	p := app.NewPipeline(cfg, a, stores, logger, backtest.WithRecorder(m))

	var res *pipeline.Result
	switch {
	case flags.fixtures:
		res, err = p.WithDataSource("fixtures").Run(ctx, pipeline.Fixtures())
	case cfg.Backtest.DataDir != "":
		var events []domain.EventRecord
		if events, err = loader.LoadDir(cfg.Backtest.DataDir); err != nil {
			return err
		}
		res, err = p.WithDataSource(cfg.Backtest.DataDir).Run(ctx, events)
	default:
		res, err = p.WithDataSource("store:" + cfg.Storage.Events).RunStored(ctx, stores.Events)
	}
	if err != nil {
		return err
	}
	m.RecordReport()

	if flags.metricsTextfile != "" {
		if err := m.WriteTextfile(flags.metricsTextfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if flags.json {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		printSummary(out, res)
	}

	if flags.failOnGate && res.Report.Gate != nil && res.Report.Gate.Decision != decision.DecisionPass {
		return errGateFailed
	}
	return nil
}

func writeJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"run":      res.Report.Run,
		"gate":     res.Report.Gate,
		"manifest": res.Manifest,
		"dir":      res.Dir,
	})
}

// printSummary outputs a human-readable run summary.
func printSummary(w io.Writer, res *pipeline.Result) {
	run := res.Report.Run

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Backtest Result ===")
	fmt.Fprintf(w, "Run ID:             %s\n", run.RunID)
	fmt.Fprintf(w, "Data Version:       %s\n", res.Manifest.DataVersion)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events:")
	fmt.Fprintf(w, "  Total:            %d\n", run.TotalEvents)
	fmt.Fprintf(w, "  Evaluated:        %d\n", run.Evaluated)
	fmt.Fprintf(w, "  Skipped:          %d\n", run.Skipped)
	fmt.Fprintf(w, "  Failed:           %d\n", run.Failed)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Metrics:")
	fmt.Fprintf(w, "  TP/FP/TN/FN:      %d/%d/%d/%d\n", run.TruePositives, run.FalsePositives, run.TrueNegatives, run.FalseNegatives)
	fmt.Fprintf(w, "  Precision:        %.3f\n", run.Precision)
	fmt.Fprintf(w, "  Recall:           %.3f\n", run.Recall)
	fmt.Fprintf(w, "  F1:               %.3f\n", run.F1)
	fmt.Fprintf(w, "  Accuracy:         %.3f\n", run.Accuracy)
	fmt.Fprintf(w, "  Brier Score:      %.4f\n", run.BrierScore)
	fmt.Fprintln(w)

	if gate := res.Report.Gate; gate != nil {
		fmt.Fprintf(w, "Gate:               %s\n", gate.Decision)
		for _, group := range [][]decision.CriterionResult{gate.Criteria, gate.Blockers} {
			for _, c := range group {
				if !c.Pass {
					fmt.Fprintf(w, "  FAIL %-28s threshold %s, actual %s\n", c.Name, c.Threshold, c.Actual)
				}
			}
		}
	} else if res.Report.GateError != "" {
		fmt.Fprintf(w, "Gate:               not evaluated (%s)\n", res.Report.GateError)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Report written to %s/\n", res.Dir)
}
