package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pdufa-lab/internal/domain"
	"pdufa-lab/internal/storage"
)

func TestBacktestRunStore_InsertGetLatest(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	if _, err := store.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on empty store, got %v", err)
	}

	for i, id := range []string{"r1", "r2", "r3"} {
		run := &domain.BacktestRun{
			RunID:     id,
			StartedAt: t0.Add(time.Duration(i) * time.Hour),
			Tiers:     []domain.TierStats{{Tier: domain.RiskHigh, Count: i}},
		}
		if err := store.Insert(ctx, run); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.RunID != "r3" {
		t.Errorf("latest = %s, want r3", latest.RunID)
	}

	runs, _ := store.List(ctx, 2)
	if len(runs) != 2 || runs[0].RunID != "r3" || runs[1].RunID != "r2" {
		t.Errorf("unexpected List(2): %+v", runs)
	}
	all, _ := store.List(ctx, 0)
	if len(all) != 3 {
		t.Errorf("List(0) returned %d runs, want 3", len(all))
	}

	got, err := store.GetByID(ctx, "r2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Tiers) != 1 || got.Tiers[0].Count != 1 {
		t.Errorf("unexpected tiers: %+v", got.Tiers)
	}

	if err := store.Insert(ctx, &domain.BacktestRun{RunID: "r1"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &domain.BacktestRun{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
