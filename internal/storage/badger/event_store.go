package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/storage"
)

// eventRow is the stored form of an event. The tri-state record is kept as
// JSON so gob never has to encode the generic field wrappers.
type eventRow struct {
	EventID   string
	Ticker    string `badgerhold:"index"` // upper-cased
	Outcome   string `badgerhold:"index"`
	PDUFADate time.Time
	Record    []byte
}

// EventStore implements storage.EventStore on badgerhold.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new EventStore.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.EventRecord) error {
	row, err := toRow(e)
	if err != nil {
		return err
	}
	if err := s.db.Store().Insert(row.EventID, row); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]*eventRow, 0, len(events))
	for _, e := range events {
		row, err := toRow(e)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	store := s.db.Store()
	err := store.Badger().Update(func(tx *badger.Txn) error {
		for _, row := range rows {
			if err := store.TxInsert(tx, row.EventID, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert events in bulk: %w", err)
	}
	return nil
}

// Upsert inserts or replaces an event.
func (s *EventStore) Upsert(_ context.Context, e *domain.EventRecord) error {
	row, err := toRow(e)
	if err != nil {
		return err
	}
	if err := s.db.Store().Upsert(row.EventID, row); err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(_ context.Context, eventID string) (*domain.EventRecord, error) {
	var row eventRow
	if err := s.db.Store().Get(eventID, &row); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return fromRow(&row)
}

// GetByTicker retrieves all events for a ticker, ordered by PDUFA date ASC.
func (s *EventStore) GetByTicker(_ context.Context, ticker string) ([]*domain.EventRecord, error) {
	return s.find(badgerhold.Where("Ticker").Eq(strings.ToUpper(strings.TrimSpace(ticker))).Index("Ticker"))
}

// GetByOutcome retrieves all events with the given outcome, ordered by PDUFA date ASC.
func (s *EventStore) GetByOutcome(_ context.Context, outcome domain.Outcome) ([]*domain.EventRecord, error) {
	return s.find(badgerhold.Where("Outcome").Eq(string(outcome)).Index("Outcome"))
}

// List retrieves every event, ordered by PDUFA date ASC then event_id.
func (s *EventStore) List(_ context.Context) ([]*domain.EventRecord, error) {
	return s.find(nil)
}

func (s *EventStore) find(q *badgerhold.Query) ([]*domain.EventRecord, error) {
	var rows []eventRow
	if err := s.db.Store().Find(&rows, q); err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}

	events := make([]*domain.EventRecord, 0, len(rows))
	for i := range rows {
		e, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	storage.SortEvents(events)
	return events, nil
}

func toRow(e *domain.EventRecord) (*eventRow, error) {
	if e == nil || e.EventID == "" {
		return nil, storage.ErrInvalidInput
	}
	record, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	outcome := e.Outcome
	if outcome == "" {
		outcome = domain.OutcomePending
	}
	row := &eventRow{
		EventID: e.EventID,
		Ticker:  strings.ToUpper(strings.TrimSpace(e.Ticker)),
		Outcome: string(outcome),
		Record:  record,
	}
	if d, ok := e.PDUFADate.Get(); ok {
		row.PDUFADate = d.Time
	}
	return row, nil
}

func fromRow(row *eventRow) (*domain.EventRecord, error) {
	var e domain.EventRecord
	if err := json.Unmarshal(row.Record, &e); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", row.EventID, err)
	}
	return &e, nil
}
