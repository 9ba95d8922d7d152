// Package app wires configuration into the stores and engine shared by the
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"

	"pdufa-lab/internal/config"
	"pdufa-lab/internal/storage"
	bstore "pdufa-lab/internal/storage/badger"
	chstore "pdufa-lab/internal/storage/clickhouse"
	"pdufa-lab/internal/storage/memory"
	"pdufa-lab/internal/storage/migrations"
	pgstore "pdufa-lab/internal/storage/postgres"
)

// Stores holds the configured storage implementations.
type Stores struct {
	Events   storage.EventStore
	Analyses storage.AnalysisStore
	Runs     storage.BacktestRunStore

	closers []func() error
}

// Close releases every backend connection in reverse open order.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// OpenStores connects the backends named in cfg. On error every backend
// opened so far is closed.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (_ *Stores, err error) {
	s := &Stores{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var pool *pgstore.Pool
	if cfg.Events == config.BackendPostgres || cfg.Runs == config.BackendPostgres {
		pool, err = pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.PoolOptions{MaxConns: cfg.PostgresMaxConns})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })

		if cfg.Migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info().Strs("applied", applied).Msg("postgres migrations done")
		}
	}

	switch cfg.Events {
	case config.BackendPostgres:
		s.Events = pgstore.NewEventStore(pool)
	case config.BackendBadger:
		db, err := bstore.Open(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Events = bstore.NewEventStore(db)
	default:
		s.Events = memory.NewEventStore()
	}

	switch cfg.Runs {
	case config.BackendPostgres:
		s.Runs = pgstore.NewBacktestRunStore(pool)
	default:
		s.Runs = memory.NewBacktestRunStore()
	}

	switch cfg.Analyses {
	case config.BackendClickhouse:
		var conn *chstore.Conn
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, conn.Close)
		s.Analyses = chstore.NewAnalysisStore(conn)
	default:
		s.Analyses = memory.NewAnalysisStore()
	}

	logger.Info().
		Str("events", cfg.Events).
		Str("analyses", cfg.Analyses).
		Str("runs", cfg.Runs).
		Msg("stores opened")
	return s, nil
}
