package memory

import (
	"context"
	"strings"
	"sync"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EventRecord // keyed by event_id
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.EventRecord),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.EventRecord) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[e.EventID] = cloneEvent(e)
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))

	// First pass: check for duplicates (existing + intra-batch)
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.EventID] = struct{}{}
	}

	// Second pass: insert all
	for _, e := range events {
		s.data[e.EventID] = cloneEvent(e)
	}

	return nil
}

// Upsert inserts or replaces an event.
func (s *EventStore) Upsert(_ context.Context, e *domain.EventRecord) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[e.EventID] = cloneEvent(e)
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(_ context.Context, eventID string) (*domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneEvent(e), nil
}

// GetByTicker retrieves all events for a ticker, ordered by PDUFA date ASC.
// Ticker match is case-insensitive.
func (s *EventStore) GetByTicker(_ context.Context, ticker string) ([]*domain.EventRecord, error) {
	return s.filter(func(e *domain.EventRecord) bool {
		return strings.EqualFold(e.Ticker, ticker)
	}), nil
}

// GetByOutcome retrieves all events with the given outcome, ordered by PDUFA date ASC.
func (s *EventStore) GetByOutcome(_ context.Context, outcome domain.Outcome) ([]*domain.EventRecord, error) {
	return s.filter(func(e *domain.EventRecord) bool {
		return e.Outcome == outcome
	}), nil
}

// List retrieves every event, ordered by PDUFA date ASC then event_id.
func (s *EventStore) List(_ context.Context) ([]*domain.EventRecord, error) {
	return s.filter(func(*domain.EventRecord) bool { return true }), nil
}

func (s *EventStore) filter(keep func(*domain.EventRecord) bool) []*domain.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventRecord
	for _, e := range s.data {
		if keep(e) {
			result = append(result, cloneEvent(e))
		}
	}
	storage.SortEvents(result)
	return result
}

var _ storage.EventStore = (*EventStore)(nil)
