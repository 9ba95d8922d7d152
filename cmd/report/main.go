package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdufa-lab/internal/app"
	"pdufa-lab/internal/config"
	"pdufa-lab/internal/decision"
	"pdufa-lab/internal/pipeline"
	"pdufa-lab/internal/reporting"
)

var flags struct {
	configPath string
	envFile    string
	runID      string
	outputDir  string
	list       int
}

var rootCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the report of a stored backtest run",
	Long: `Report loads a stored backtest run and its analyses, recomputes the metrics
to verify what was persisted, evaluates the model gate and writes the report
files. Without --run-id the most recent run is used.`,
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
	f.StringVar(&flags.runID, "run-id", "", "Run to render (default: latest)")
	f.StringVar(&flags.outputDir, "output-dir", "", "Report directory (default: backtest.output_dir)")
	f.IntVar(&flags.list, "list", 0, "List the N most recent runs instead of rendering")
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
	if cfg.Storage.Runs == config.BackendMemory {
		logger.Warn().Msg("run store is in memory; only runs from this process are visible")
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	out := cmd.OutOrStdout()
	if flags.list > 0 {
		runs, err := stores.Runs.List(ctx, flags.list)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  evaluated=%d  f1=%.3f  brier=%.4f\n",
				r.RunID, r.StartedAt.Format("2006-01-02 15:04"), r.Evaluated, r.F1, r.BrierScore)
		}
		return nil
	}

	gen := reporting.NewGenerator(stores.Analyses, stores.Runs, decision.NewEvaluator(cfg.Gate))
	res, err := pipeline.New(nil, gen, cfg.Backtest.OutputDir).
		WithLogger(logger).
		WithDataSource("store:" + cfg.Storage.Analyses).
		Render(ctx, flags.runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Report for run %s generated:\n", res.Manifest.RunID)
	for _, f := range res.Manifest.Files {
		fmt.Fprintf(out, "  - %s/%s\n", res.Dir, f)
	}
	if n := len(res.Report.DataQuality.IntegrityErrors); n > 0 {
		fmt.Fprintf(out, "Warning: %d integrity error(s), see %s\n", n, pipeline.ReportFile)
	}
	return nil
}
