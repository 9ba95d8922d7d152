package storage

import (
	"context"

	"pdufa-lab/internal/domain"
)

// EventStore provides access to pdufa_events storage.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.EventRecord) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.EventRecord) error

	// Upsert inserts or replaces an event as research on it progresses.
	Upsert(ctx context.Context, e *domain.EventRecord) error

	// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID string) (*domain.EventRecord, error)

	// GetByTicker retrieves all events for a ticker, ordered by PDUFA date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.EventRecord, error)

	// GetByOutcome retrieves all events with the given outcome, ordered by PDUFA date ASC.
	GetByOutcome(ctx context.Context, outcome domain.Outcome) ([]*domain.EventRecord, error)

	// List retrieves every event, ordered by PDUFA date ASC then event_id.
	List(ctx context.Context) ([]*domain.EventRecord, error)
}

// AnalysisStore provides access to analysis_results storage (append-only).
type AnalysisStore interface {
	// Insert adds a new analysis. Returns ErrDuplicateKey if analysis_id exists.
	Insert(ctx context.Context, r *domain.AnalysisRecord) error

	// InsertBulk adds multiple analyses atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.AnalysisRecord) error

	// GetByEventID retrieves all analyses of an event, ordered by analyzed_at ASC.
	GetByEventID(ctx context.Context, eventID string) ([]*domain.AnalysisRecord, error)

	// GetLatest retrieves the most recent analysis of an event. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, eventID string) (*domain.AnalysisRecord, error)

	// GetByRunID retrieves all analyses produced by a backtest run, ordered by event_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.AnalysisRecord, error)
}

// BacktestRunStore provides access to backtest_runs storage (append-only).
type BacktestRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
	GetLatest(ctx context.Context) (*domain.BacktestRun, error)

	// List retrieves up to limit runs, most recent first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*domain.BacktestRun, error)
}
