package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/storage"
)

// AnalysisStore implements storage.AnalysisStore using ClickHouse.
type AnalysisStore struct {
	conn *Conn
}

// NewAnalysisStore creates a new AnalysisStore.
func NewAnalysisStore(conn *Conn) *AnalysisStore {
	return &AnalysisStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AnalysisStore = (*AnalysisStore)(nil)

const analysisColumns = `
	analysis_id, event_id, run_id, ticker, drug_name, pdufa_date,
	probability, base_probability, crl_probability, risk_tier, confidence,
	binding_cap, factors_applied, warnings, actual_outcome, predicted_crl,
	analyzed_at
`

// Insert adds a new analysis. Returns ErrDuplicateKey if analysis_id exists.
func (s *AnalysisStore) Insert(ctx context.Context, r *domain.AnalysisRecord) error {
	return s.InsertBulk(ctx, []*domain.AnalysisRecord{r})
}

// InsertBulk adds multiple analyses atomically. Fails entire batch on any duplicate.
// ReplacingMergeTree does not reject duplicates, so keys are checked before the batch is sent.
func (s *AnalysisStore) InsertBulk(ctx context.Context, records []*domain.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.AnalysisID == "" || r.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.AnalysisID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.AnalysisID] = struct{}{}
		ids = append(ids, r.AnalysisID)
	}

	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM analysis_results FINAL WHERE analysis_id IN (?)`, ids,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO analysis_results (`+analysisColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.AnalysisID, r.EventID, r.RunID, r.Ticker, r.DrugName, r.PDUFADate,
			r.Probability, r.BaseProbability, r.CRLProbability, string(r.RiskTier), r.Confidence,
			r.BindingCap, nonNil(r.FactorsApplied), nonNil(r.Warnings), string(r.ActualOutcome), r.PredictedCRL,
			r.AnalyzedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByEventID retrieves all analyses of an event, ordered by analyzed_at ASC.
func (s *AnalysisStore) GetByEventID(ctx context.Context, eventID string) ([]*domain.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + `
		FROM analysis_results FINAL
		WHERE event_id = ?
		ORDER BY analyzed_at ASC, analysis_id ASC
	`

	rows, err := s.conn.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query by event id: %w", err)
	}
	defer rows.Close()

	return scanAnalyses(rows)
}

// GetLatest retrieves the most recent analysis of an event. Returns ErrNotFound if none.
func (s *AnalysisStore) GetLatest(ctx context.Context, eventID string) (*domain.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + `
		FROM analysis_results FINAL
		WHERE event_id = ?
		ORDER BY analyzed_at DESC, analysis_id DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer rows.Close()

	records, err := scanAnalyses(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// GetByRunID retrieves all analyses produced by a backtest run, ordered by event_id ASC.
func (s *AnalysisStore) GetByRunID(ctx context.Context, runID string) ([]*domain.AnalysisRecord, error) {
	if runID == "" {
		return nil, nil
	}
	query := `SELECT ` + analysisColumns + `
		FROM analysis_results FINAL
		WHERE run_id = ?
		ORDER BY event_id ASC, analyzed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanAnalyses(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAnalyses(rows chRows) ([]*domain.AnalysisRecord, error) {
	var records []*domain.AnalysisRecord

	for rows.Next() {
		var (
			r          domain.AnalysisRecord
			pdufa      *time.Time
			tier       string
			outcome    string
			analyzedAt time.Time
		)
		err := rows.Scan(
			&r.AnalysisID, &r.EventID, &r.RunID, &r.Ticker, &r.DrugName, &pdufa,
			&r.Probability, &r.BaseProbability, &r.CRLProbability, &tier, &r.Confidence,
			&r.BindingCap, &r.FactorsApplied, &r.Warnings, &outcome, &r.PredictedCRL,
			&analyzedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		if pdufa != nil {
			d := pdufa.UTC()
			r.PDUFADate = &d
		}
		r.RiskTier = domain.RiskTier(tier)
		r.ActualOutcome = domain.Outcome(outcome)
		r.AnalyzedAt = analyzedAt.UTC()
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis rows: %w", err)
	}

	return records, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
