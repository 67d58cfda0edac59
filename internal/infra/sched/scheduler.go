package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reply-assistant/internal/infra/redis"
)

// Task is a periodic job. Across replicas it runs at most once per Interval.
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs tasks on tickers. Each run first takes a redis lock named
// after the task with a TTL of the task interval, and keeps it on success so
// other replicas skip the same slot.
type Scheduler struct {
	locker redis.Locker
	tasks  []Task
	log    *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a scheduler. A nil locker runs every tick locally.
func New(locker redis.Locker, logger *zerolog.Logger, tasks ...Task) *Scheduler {
	l := logger.With().Str("component", "scheduler").Logger()
	return &Scheduler{locker: locker, tasks: tasks, log: &l}
}

// Start runs every task once and then on its interval. Calling Start twice
// has no effect.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	s.log.Info().Int("tasks", len(s.tasks)).Msg("scheduler started")
}

// Stop cancels all loops and waits for running tasks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()
	interval := t.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx, t); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Str("task", t.Name).Msg("scheduled task failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce runs t if this replica wins the lock for the current slot. It
// reports whether the task ran. A failed run releases the lock so the next
// tick on any replica retries.
func (s *Scheduler) RunOnce(ctx context.Context, t Task) (bool, error) {
	var token string
	if s.locker != nil {
		ttl := t.Interval
		if ttl <= time.Second {
			ttl = time.Second
		}
		tok, err := s.locker.TryLock(ctx, "sched:"+t.Name, ttl-ttl/10)
		if errors.Is(err, redis.ErrLockHeld) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		token = tok
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := t.Run(runCtx)
	if err != nil && s.locker != nil {
		// the run context may be done; the unlock gets its own
		unlockCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		if uerr := s.locker.Unlock(unlockCtx, "sched:"+t.Name, token); uerr != nil {
			s.log.Warn().Err(uerr).Str("task", t.Name).Msg("release task lock")
		}
		done()
	}
	s.log.Debug().Str("task", t.Name).Dur("took", time.Since(start)).Bool("ok", err == nil).Msg("scheduled task run")
	return true, err
}
