package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/infra/metrics"
)

// queueWorker runs cfg.Concurrency claim loops for one queue.
type queueWorker struct {
	pool *Pool
	reg  *registration
	log  zerolog.Logger
}

func newQueueWorker(p *Pool, r *registration) *queueWorker {
	return &queueWorker{
		pool: p,
		reg:  r,
		log:  p.log.With().Str("queue", string(r.queue)).Logger(),
	}
}

func (w *queueWorker) start(ctx context.Context, wg *sync.WaitGroup) {
	for i := 0; i < w.reg.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
}

func (w *queueWorker) loop(ctx context.Context, slot int) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.pool.store.Claim(ctx, w.reg.queue)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
				w.log.Error().Err(err).Int("slot", slot).Msg("failed to claim job")
			}
			if !sleep(ctx, w.reg.cfg.PollInterval) {
				return
			}
			continue
		}

		if !w.waitForSlot(ctx) {
			// shutting down before the job started; hand it back untouched
			if err := w.pool.store.Release(context.WithoutCancel(ctx), job.ID); err != nil {
				w.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to release job on shutdown")
			}
			return
		}

		// a started job runs to completion even if the pool stops
		w.process(context.WithoutCancel(ctx), job)
	}
}

// waitForSlot blocks until the queue's rate window admits one more start.
func (w *queueWorker) waitForSlot(ctx context.Context) bool {
	rl := w.reg.cfg.RateLimit
	if rl.Max <= 0 || rl.Duration <= 0 {
		return true
	}
	key := "queue:" + string(w.reg.queue)
	waited := false
	for {
		ok, err := w.pool.limiter.Allow(ctx, key, rl.Max, rl.Duration)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			w.log.Warn().Err(err).Msg("rate limiter unavailable, proceeding")
			return true
		}
		if ok {
			return true
		}
		if !waited {
			metrics.IncRateLimitWait(string(w.reg.queue))
			waited = true
		}
		if !sleep(ctx, w.reg.cfg.PollInterval) {
			return false
		}
	}
}

func (w *queueWorker) process(ctx context.Context, job *model.Job) {
	queue := string(job.Queue)
	log := w.log.With().Str("job_id", job.ID).Int("attempt", job.Attempts).Logger()
	log.Debug().Msg("processing job")

	metrics.JobStarted(queue)
	start := time.Now()
	result, err := w.run(ctx, job)
	elapsed := time.Since(start)
	metrics.JobFinished(queue)
	metrics.ObserveJobDuration(queue, elapsed)

	if err == nil {
		if serr := w.pool.store.Complete(ctx, job.ID, result); serr != nil {
			log.Error().Err(serr).Msg("failed to mark job completed")
		}
		metrics.IncJob(queue, "completed")
		log.Info().Dur("duration", elapsed).Msg("job completed")
		w.pool.emitCompleted(CompletedEvent{
			JobID: job.ID, Queue: job.Queue, Attempt: job.Attempts, Result: result, Duration: elapsed,
		})
		return
	}

	ev := FailedEvent{JobID: job.ID, Queue: job.Queue, Attempt: job.Attempts, Err: err}
	if w.pool.isPermanent(err) || job.Exhausted() {
		if serr := w.pool.store.Fail(ctx, job.ID, err.Error()); serr != nil {
			log.Error().Err(serr).Msg("failed to mark job failed")
		}
		metrics.IncJob(queue, "failed")
		log.Error().Err(err).Bool("permanent", w.pool.isPermanent(err)).Msg("job failed")
	} else {
		ev.WillRetry = true
		ev.RetryAt = time.Now().Add(w.reg.cfg.Backoff.Delay(job.Attempts))
		if serr := w.pool.store.Retry(ctx, job.ID, ev.RetryAt, err.Error()); serr != nil {
			log.Error().Err(serr).Msg("failed to schedule job retry")
		}
		metrics.IncJob(queue, "retried")
		log.Warn().Err(err).Time("retry_at", ev.RetryAt).Msg("job attempt failed, will retry")
	}
	w.pool.emitFailed(ev)
}

func (w *queueWorker) run(ctx context.Context, job *model.Job) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.reg.handle(ctx, job)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
