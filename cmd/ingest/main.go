package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pdufa-lab/internal/analyzer"
	"pdufa-lab/internal/app"
	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/loader"
	"pdufa-lab/internal/logging"
	"pdufa-lab/internal/observability"
	"pdufa-lab/internal/pipeline"
	"pdufa-lab/internal/storage"
)

var flags struct {
	configPath      string
	envFile         string
	dataDir         string
	fixtures        bool
	update          bool
	analyze         bool
	metricsTextfile string
}

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load event records into the event store",
	Long: `Ingest reads every *.json file in the data directory (one record or an
array of records per file), validates each record and stores it.

Existing events are skipped unless --update is set. With --analyze every
stored event is also scored and the analysis persisted.`,
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
	f.StringVar(&flags.dataDir, "data-dir", "", "Directory of JSON records (default: backtest.data_dir)")
	f.BoolVar(&flags.fixtures, "use-fixtures", false, "Ingest the built-in demo events instead of a directory")
	f.BoolVar(&flags.update, "update", false, "Overwrite events that already exist")
	f.BoolVar(&flags.analyze, "analyze", false, "Score each stored event and persist the analysis")
	f.StringVar(&flags.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type counts struct {
	stored, duplicate, rejected, analyzed int
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, base, err := app.Load(flags.envFile, flags.configPath)
	if err != nil {
		return err
	}
	logger := logging.With(base, "ingest")

	dir := flags.dataDir
	if dir == "" {
		dir = cfg.Backtest.DataDir
	}
	if dir == "" && !flags.fixtures {
		return errors.New("--data-dir is required (or set backtest.data_dir, or use --use-fixtures)")
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	m := observability.NewMetrics("", prometheus.NewRegistry())

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	var a *analyzer.Analyzer
	if flags.analyze {
		if a, err = app.NewAnalyzer(cfg.Engine, base, m); err != nil {
			return err
		}
	}

	var c counts
	start := time.Now()
	if flags.fixtures {
		ingestBatch(ctx, logger, stores, a, "fixtures", pipeline.Fixtures(), &c)
	} else {
		paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return fmt.Errorf("list %s: %w", dir, err)
		}
		sort.Strings(paths)
		for _, p := range paths {
			if ctx.Err() != nil {
				break
			}
			recs, err := loader.LoadFile(p)
			if err != nil {
				logger.Warn().Str("file", p).Err(err).Msg("file rejected")
				c.rejected++
				continue
			}
			ingestBatch(ctx, logger, stores, a, p, recs, &c)
		}
	}

	m.RecordIngest(c.stored, c.duplicate, c.rejected)
	logger.Info().
		Int("stored", c.stored).
		Int("duplicate", c.duplicate).
		Int("rejected", c.rejected).
		Int("analyzed", c.analyzed).
		Int64("took_ms", time.Since(start).Milliseconds()).
		Msg("ingest complete")

	if flags.metricsTextfile != "" {
		if err := m.WriteTextfile(flags.metricsTextfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored=%d duplicate=%d rejected=%d analyzed=%d\n",
		c.stored, c.duplicate, c.rejected, c.analyzed)
	return ctx.Err()
}

func ingestBatch(ctx context.Context, logger *log.Logger, s *app.Stores, a *analyzer.Analyzer, source string, recs []domain.EventRecord, c *counts) {
	now := time.Now().UTC()
	for i := range recs {
		rec := &recs[i]
		if rec.CollectedAt.IsZero() {
			rec.CollectedAt = now
		}
		rec.UpdatedAt = now

		var err error
		if flags.update {
			err = s.Events.Upsert(ctx, rec)
		} else {
			err = s.Events.Insert(ctx, rec)
		}
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			c.duplicate++
			logger.Debug().Str("event_id", rec.EventID).Str("source", source).Msg("event exists, skipped")
			continue
		case err != nil:
			c.rejected++
			logger.Warn().Str("event_id", rec.EventID).Str("source", source).Err(err).Msg("store failed")
			continue
		}
		c.stored++

		if a == nil {
			continue
		}
		actx, err := loader.ToContext(*rec, now)
		if err != nil {
			logger.Warn().Str("event_id", rec.EventID).Err(err).Msg("analysis skipped")
			continue
		}
		res := a.Analyze(actx)
		if err := s.Analyses.Insert(ctx, res.Record(rec.EventID, "", actx.PDUFADate, rec.Outcome)); err != nil &&
			!errors.Is(err, storage.ErrDuplicateKey) {
			logger.Warn().Str("event_id", rec.EventID).Err(err).Msg("store analysis failed")
			continue
		}
		c.analyzed++
	}
}
