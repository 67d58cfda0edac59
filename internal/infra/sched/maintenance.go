package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reply-assistant/internal/config"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/infra/metrics"
)

// StaleRequeuer returns abandoned processing jobs to pending.
type StaleRequeuer interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, payload model.Payload) (string, error)
}

// MaintenanceTasks builds the recurring housekeeping tasks: stale job
// recovery, the retention purge and the daily trend rollup. The latter two
// only enqueue work; the worker pool runs it.
func MaintenanceTasks(cfg config.SchedulerConfig, jobs StaleRequeuer, enq Enqueuer, logger *zerolog.Logger) []Task {
	log := logger.With().Str("component", "maintenance").Logger()
	return []Task{
		{
			Name:     "requeue_stale",
			Interval: cfg.StaleInterval,
			Timeout:  30 * time.Second,
			Run: func(ctx context.Context) error {
				n, err := jobs.RequeueStale(ctx, cfg.StaleAfter)
				if err != nil {
					return fmt.Errorf("requeue stale jobs: %w", err)
				}
				if n > 0 {
					metrics.AddRequeued(n)
					log.Warn().Int64("count", n).Dur("older_than", cfg.StaleAfter).Msg("stale jobs requeued")
				}
				return nil
			},
		},
		{
			Name:     "retention",
			Interval: cfg.RetentionInterval,
			Timeout:  30 * time.Second,
			Run: func(ctx context.Context) error {
				id, err := enq.Enqueue(ctx, model.RetentionPayload{OlderThanDays: cfg.RetentionDays})
				if err != nil {
					return fmt.Errorf("enqueue retention: %w", err)
				}
				log.Info().Str("job_id", id).Int("older_than_days", cfg.RetentionDays).Msg("retention job enqueued")
				return nil
			},
		},
		{
			Name:     "trend_rollup",
			Interval: cfg.TrendInterval,
			Timeout:  30 * time.Second,
			Run: func(ctx context.Context) error {
				id, err := enq.Enqueue(ctx, model.AggregationPayload{})
				if err != nil {
					return fmt.Errorf("enqueue trend rollup: %w", err)
				}
				log.Debug().Str("job_id", id).Msg("trend rollup enqueued")
				return nil
			},
		},
	}
}
