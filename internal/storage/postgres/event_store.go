package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
// The tri-state record is stored as JSONB next to its indexed scalar columns.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const insertEvent = `
	INSERT INTO pdufa_events (
		event_id, ticker, drug_name, pdufa_date, outcome, record, collected_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const selectEvents = `SELECT record FROM pdufa_events`

const orderEvents = ` ORDER BY pdufa_date ASC NULLS LAST, event_id ASC`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.EventRecord) error {
	args, err := eventArgs(e)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, insertEvent, args...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		args, err := eventArgs(e)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertEvent, args...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Upsert inserts or replaces an event.
func (s *EventStore) Upsert(ctx context.Context, e *domain.EventRecord) error {
	args, err := eventArgs(e)
	if err != nil {
		return err
	}
	query := insertEvent + `
		ON CONFLICT (event_id) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			drug_name = EXCLUDED.drug_name,
			pdufa_date = EXCLUDED.pdufa_date,
			outcome = EXCLUDED.outcome,
			record = EXCLUDED.record,
			collected_at = EXCLUDED.collected_at,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(ctx context.Context, eventID string) (*domain.EventRecord, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, selectEvents+` WHERE event_id = $1`, eventID).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event by id: %w", err)
	}
	return decodeEvent(raw)
}

// GetByTicker retrieves all events for a ticker, ordered by PDUFA date ASC.
func (s *EventStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.EventRecord, error) {
	rows, err := s.pool.Query(ctx, selectEvents+` WHERE upper(ticker) = upper($1)`+orderEvents, ticker)
	if err != nil {
		return nil, fmt.Errorf("get events by ticker: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetByOutcome retrieves all events with the given outcome, ordered by PDUFA date ASC.
func (s *EventStore) GetByOutcome(ctx context.Context, outcome domain.Outcome) ([]*domain.EventRecord, error) {
	rows, err := s.pool.Query(ctx, selectEvents+` WHERE outcome = $1`+orderEvents, string(outcome))
	if err != nil {
		return nil, fmt.Errorf("get events by outcome: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// List retrieves every event, ordered by PDUFA date ASC then event_id.
func (s *EventStore) List(ctx context.Context) ([]*domain.EventRecord, error) {
	rows, err := s.pool.Query(ctx, selectEvents+orderEvents)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func eventArgs(e *domain.EventRecord) ([]any, error) {
	if e == nil || e.EventID == "" {
		return nil, storage.ErrInvalidInput
	}
	record, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}

	var pdufa *time.Time
	if d, ok := e.PDUFADate.Get(); ok {
		pdufa = d.TimePtr()
	}
	var collected *time.Time
	if !e.CollectedAt.IsZero() {
		collected = &e.CollectedAt
	}
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	outcome := e.Outcome
	if outcome == "" {
		outcome = domain.OutcomePending
	}

	return []any{e.EventID, e.Ticker, e.DrugName, pdufa, string(outcome), record, collected, updated}, nil
}

func decodeEvent(raw []byte) (*domain.EventRecord, error) {
	var e domain.EventRecord
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode event record: %w", err)
	}
	return &e, nil
}

func scanEvents(rows pgx.Rows) ([]*domain.EventRecord, error) {
	var events []*domain.EventRecord

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e, err := decodeEvent(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
