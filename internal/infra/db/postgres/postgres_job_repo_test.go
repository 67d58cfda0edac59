//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewJobRepo(testPool)
	ctx := context.Background()

	enqueue := func(t *testing.T, p model.Payload) *model.Job {
		t.Helper()
		job, err := model.NewJob(p, 3)
		if err != nil {
			t.Fatalf("NewJob: %v", err)
		}
		if err := repo.Enqueue(ctx, nil, job); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		return job
	}

	t.Run("claim should hand each job to exactly one worker", func(t *testing.T) {
		cleanup(t)
		for i := 0; i < 10; i++ {
			enqueue(t, model.IndexPayload{TenantID: "t1", DocumentID: "d"})
		}

		var mu sync.Mutex
		seen := map[string]int{}
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					job, err := repo.Claim(ctx, model.QueueIndex)
					if err == domain.ErrNotFound {
						return
					}
					if err != nil {
						t.Errorf("Claim: %v", err)
						return
					}
					mu.Lock()
					seen[job.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if len(seen) != 10 {
			t.Fatalf("expected 10 distinct claims, got %d", len(seen))
		}
		for id, n := range seen {
			if n != 1 {
				t.Errorf("job %s claimed %d times", id, n)
			}
		}
	})

	t.Run("retry should delay and release should refund the attempt", func(t *testing.T) {
		cleanup(t)
		job := enqueue(t, model.RetentionPayload{OlderThanDays: 30})

		claimed, err := repo.Claim(ctx, model.QueueRetention)
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if claimed.Attempts != 1 || claimed.Status != model.JobStatusProcessing {
			t.Fatalf("unexpected claimed job %+v", claimed)
		}
		if err := repo.Retry(ctx, job.ID, time.Now().Add(time.Hour), "boom"); err != nil {
			t.Fatalf("Retry: %v", err)
		}
		if _, err := repo.Claim(ctx, model.QueueRetention); err != domain.ErrNotFound {
			t.Fatalf("expected delayed job to be invisible, got %v", err)
		}

		if _, err := testPool.Exec(ctx, `UPDATE jobs SET run_at = now() WHERE id = $1`, job.ID); err != nil {
			t.Fatalf("reset run_at: %v", err)
		}
		if _, err := repo.Claim(ctx, model.QueueRetention); err != nil {
			t.Fatalf("Claim after retry: %v", err)
		}
		if err := repo.Release(ctx, job.ID); err != nil {
			t.Fatalf("Release: %v", err)
		}
		got, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Attempts != 1 || got.Status != model.JobStatusPending || got.LastError != "boom" {
			t.Errorf("unexpected released job %+v", got)
		}
	})

	t.Run("complete and fail should be terminal", func(t *testing.T) {
		cleanup(t)
		a := enqueue(t, model.AggregationPayload{})
		b := enqueue(t, model.AggregationPayload{})
		for i := 0; i < 2; i++ {
			if _, err := repo.Claim(ctx, model.QueueAggregation); err != nil {
				t.Fatalf("Claim: %v", err)
			}
		}
		if err := repo.Complete(ctx, a.ID, []byte(`{"rows":3}`)); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if err := repo.Fail(ctx, b.ID, "bad"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
		gotA, _ := repo.FindByID(ctx, nil, a.ID)
		gotB, _ := repo.FindByID(ctx, nil, b.ID)
		if gotA.Status != model.JobStatusCompleted || gotB.Status != model.JobStatusFailed {
			t.Errorf("unexpected statuses %s / %s", gotA.Status, gotB.Status)
		}
	})

	t.Run("stale processing jobs should be requeued", func(t *testing.T) {
		cleanup(t)
		job := enqueue(t, model.AggregationPayload{})
		if _, err := repo.Claim(ctx, model.QueueAggregation); err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if _, err := testPool.Exec(ctx, `UPDATE jobs SET updated_at = now() - interval '1 hour' WHERE id = $1`, job.ID); err != nil {
			t.Fatalf("age job: %v", err)
		}
		n, err := repo.RequeueStale(ctx, 10*time.Minute)
		if err != nil {
			t.Fatalf("RequeueStale: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 requeued job, got %d", n)
		}
	})

	t.Run("stale jobs on their last attempt should fail instead of requeue", func(t *testing.T) {
		cleanup(t)
		job, err := model.NewJob(model.AggregationPayload{}, 1)
		if err != nil {
			t.Fatalf("NewJob: %v", err)
		}
		if err := repo.Enqueue(ctx, nil, job); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if _, err := repo.Claim(ctx, model.QueueAggregation); err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if _, err := testPool.Exec(ctx, `UPDATE jobs SET updated_at = now() - interval '1 hour' WHERE id = $1`, job.ID); err != nil {
			t.Fatalf("age job: %v", err)
		}

		n, err := repo.RequeueStale(ctx, 10*time.Minute)
		if err != nil {
			t.Fatalf("RequeueStale: %v", err)
		}
		if n != 0 {
			t.Errorf("expected no requeued job, got %d", n)
		}
		got, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Status != model.JobStatusFailed {
			t.Errorf("expected failed, got %s", got.Status)
		}
		if _, err := repo.Claim(ctx, model.QueueAggregation); err != domain.ErrNotFound {
			t.Errorf("expected nothing to claim, got %v", err)
		}
	})
}
