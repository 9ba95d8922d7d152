package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const selectRuns = `
	SELECT
		run_id, started_at, completed_at,
		total_events, evaluated, skipped, failed,
		true_positives, false_positives, true_negatives, false_negatives,
		precision_score, recall_score, f1_score, accuracy, brier_score,
		tiers, notes
	FROM backtest_runs
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}
	tiers, err := json.Marshal(tiersOrEmpty(r.Tiers))
	if err != nil {
		return fmt.Errorf("encode tiers: %w", err)
	}

	query := `
		INSERT INTO backtest_runs (
			run_id, started_at, completed_at,
			total_events, evaluated, skipped, failed,
			true_positives, false_positives, true_negatives, false_negatives,
			precision_score, recall_score, f1_score, accuracy, brier_score,
			tiers, notes
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18
		)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.StartedAt, r.CompletedAt,
		r.TotalEvents, r.Evaluated, r.Skipped, r.Failed,
		r.TruePositives, r.FalsePositives, r.TrueNegatives, r.FalseNegatives,
		r.Precision, r.Recall, r.F1, r.Accuracy, r.BrierScore,
		tiers, r.Notes,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, selectRuns+` WHERE run_id = $1`, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetLatest retrieves the most recently started run. Returns ErrNotFound if none.
func (s *BacktestRunStore) GetLatest(ctx context.Context) (*domain.BacktestRun, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, selectRuns+` ORDER BY started_at DESC, run_id ASC LIMIT 1`))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest backtest run: %w", err)
	}
	return r, nil
}

// List retrieves up to limit runs, most recent first. limit <= 0 means all.
func (s *BacktestRunStore) List(ctx context.Context, limit int) ([]*domain.BacktestRun, error) {
	query := selectRuns + ` ORDER BY started_at DESC, run_id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var tiers []byte

	err := row.Scan(
		&r.RunID, &r.StartedAt, &r.CompletedAt,
		&r.TotalEvents, &r.Evaluated, &r.Skipped, &r.Failed,
		&r.TruePositives, &r.FalsePositives, &r.TrueNegatives, &r.FalseNegatives,
		&r.Precision, &r.Recall, &r.F1, &r.Accuracy, &r.BrierScore,
		&tiers, &r.Notes,
	)
	if err != nil {
		return nil, err
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &r.Tiers); err != nil {
			return nil, fmt.Errorf("decode tiers: %w", err)
		}
	}
	if len(r.Tiers) == 0 {
		r.Tiers = nil
	}
	r.StartedAt = r.StartedAt.UTC()
	r.CompletedAt = r.CompletedAt.UTC()
	return &r, nil
}

func tiersOrEmpty(t []domain.TierStats) []domain.TierStats {
	if t == nil {
		return []domain.TierStats{}
	}
	return t
}
