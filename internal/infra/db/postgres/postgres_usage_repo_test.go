//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"

	"reply-assistant/internal/domain"
)

func TestUsageRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewUsageRepo(testPool)
	ctx := context.Background()

	t.Run("check should report zero for a new user", func(t *testing.T) {
		cleanup(t)
		seedTenant(t, "t1", 100, false)

		rec, err := repo.Check(ctx, nil, "t1", "u1", "2026-10")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if rec.Count != 0 || rec.Limit != 100 || rec.AllowOverage {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("check should miss for a tenant without plan", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.Check(ctx, nil, "ghost", "u1", "2026-10"); err != domain.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("concurrent increments should not lose updates", func(t *testing.T) {
		cleanup(t)
		seedTenant(t, "t1", 100, false)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Increment(ctx, nil, "t1", "u1", "2026-10"); err != nil {
					t.Errorf("Increment: %v", err)
				}
			}()
		}
		wg.Wait()

		rec, err := repo.Check(ctx, nil, "t1", "u1", "2026-10")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if rec.Count != 20 {
			t.Errorf("expected 20, got %d", rec.Count)
		}
	})

	t.Run("summary should rank users", func(t *testing.T) {
		cleanup(t)
		seedTenant(t, "t1", 100, false)
		for i := 0; i < 3; i++ {
			_, _ = repo.Increment(ctx, nil, "t1", "heavy", "2026-10")
		}
		_, _ = repo.Increment(ctx, nil, "t1", "light", "2026-10")

		sum, err := repo.MonthlySummary(ctx, nil, "t1", "2026-10", 1)
		if err != nil {
			t.Fatalf("MonthlySummary: %v", err)
		}
		if sum.Total != 4 || sum.ActiveUsers != 2 {
			t.Errorf("unexpected totals %+v", sum)
		}
		if len(sum.TopUsers) != 1 || sum.TopUsers[0].UserID != "heavy" {
			t.Errorf("unexpected top users %+v", sum.TopUsers)
		}
	})
}
