package repository

import (
	"context"
	"time"

	"reply-assistant/internal/domain/model"
)

// JobRepository is the durable queue store.
type JobRepository interface {
	Enqueue(ctx context.Context, tx Tx, job *model.Job) error
	// Claim atomically moves the oldest runnable job of queue to processing and
	// increments its attempts. It returns domain.ErrNotFound when nothing is ready.
	Claim(ctx context.Context, queue model.QueueName) (*model.Job, error)
	Complete(ctx context.Context, id string, result []byte) error
	// Retry puts a claimed job back to pending, runnable at runAt.
	Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error
	// Release returns a claimed job that never ran, refunding its attempt.
	Release(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, lastErr string) error
	// RequeueStale returns jobs stuck in processing longer than olderThan to pending,
	// failing those that already used their last attempt. It reports the requeued count.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
}
