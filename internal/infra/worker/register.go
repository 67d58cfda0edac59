package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reply-assistant/internal/domain/model"
)

// QueueConfig controls one queue's workers.
type QueueConfig struct {
	Concurrency  int
	RateLimit    RateLimit
	MaxAttempts  int
	Backoff      Backoff
	PollInterval time.Duration
}

// RateLimit allows at most Max job starts per Duration across the queue.
// A zero Max disables limiting.
type RateLimit struct {
	Max      int
	Duration time.Duration
}

func (c QueueConfig) normalized() QueueConfig {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	return c
}

// JobMeta describes the running attempt to a handler.
type JobMeta struct {
	ID          string
	Queue       model.QueueName
	Attempt     int
	MaxAttempts int
}

// Handler processes one decoded payload and returns a result to store.
type Handler[P model.Payload, R any] func(ctx context.Context, meta JobMeta, payload P) (R, error)

type rawHandler func(ctx context.Context, job *model.Job) ([]byte, error)

type registration struct {
	queue  model.QueueName
	cfg    QueueConfig
	handle rawHandler
}

// Register binds a typed handler to the queue named by P. It must be called
// before Start; registering a queue twice replaces the earlier handler.
func Register[P model.Payload, R any](p *Pool, cfg QueueConfig, h Handler[P, R]) {
	var zero P
	queue := zero.Queue()
	raw := func(ctx context.Context, job *model.Job) ([]byte, error) {
		var payload P
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, Permanent(fmt.Errorf("decode %s payload: %w", queue, err))
		}
		res, err := h(ctx, JobMeta{
			ID:          job.ID,
			Queue:       job.Queue,
			Attempt:     job.Attempts,
			MaxAttempts: job.MaxAttempts,
		}, payload)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return nil, Permanent(fmt.Errorf("encode %s result: %w", queue, err))
		}
		return out, nil
	}
	p.add(&registration{queue: queue, cfg: cfg.normalized(), handle: raw})
}
