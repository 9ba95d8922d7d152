package memory

import (
	"context"
	"sort"
	"sync"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/storage"
)

// AnalysisStore is an in-memory implementation of storage.AnalysisStore.
type AnalysisStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AnalysisRecord // keyed by analysis_id
}

// NewAnalysisStore creates a new in-memory analysis store.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{
		data: make(map[string]*domain.AnalysisRecord),
	}
}

// Insert adds a new analysis. Returns ErrDuplicateKey if analysis_id exists.
func (s *AnalysisStore) Insert(_ context.Context, r *domain.AnalysisRecord) error {
	if r == nil || r.AnalysisID == "" || r.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.AnalysisID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.AnalysisID] = cloneAnalysis(r)
	return nil
}

// InsertBulk adds multiple analyses atomically. Fails entire batch on any duplicate.
func (s *AnalysisStore) InsertBulk(_ context.Context, records []*domain.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))

	for _, r := range records {
		if r == nil || r.AnalysisID == "" || r.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.AnalysisID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.AnalysisID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.AnalysisID] = struct{}{}
	}

	for _, r := range records {
		s.data[r.AnalysisID] = cloneAnalysis(r)
	}

	return nil
}

// GetByEventID retrieves all analyses of an event, ordered by analyzed_at ASC.
func (s *AnalysisStore) GetByEventID(_ context.Context, eventID string) ([]*domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AnalysisRecord
	for _, r := range s.data {
		if r.EventID == eventID {
			result = append(result, cloneAnalysis(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].AnalyzedAt.Equal(result[j].AnalyzedAt) {
			return result[i].AnalyzedAt.Before(result[j].AnalyzedAt)
		}
		return result[i].AnalysisID < result[j].AnalysisID
	})

	return result, nil
}

// GetLatest retrieves the most recent analysis of an event. Returns ErrNotFound if none.
func (s *AnalysisStore) GetLatest(ctx context.Context, eventID string) (*domain.AnalysisRecord, error) {
	all, err := s.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, storage.ErrNotFound
	}
	return all[len(all)-1], nil
}

// GetByRunID retrieves all analyses produced by a backtest run, ordered by event_id ASC.
func (s *AnalysisStore) GetByRunID(_ context.Context, runID string) ([]*domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AnalysisRecord
	for _, r := range s.data {
		if runID != "" && r.RunID == runID {
			result = append(result, cloneAnalysis(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EventID < result[j].EventID
	})

	return result, nil
}

var _ storage.AnalysisStore = (*AnalysisStore)(nil)
