package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reply-assistant/internal/infra/metrics"
)

// Detacher runs side effects that must neither block nor fail the caller.
// Each task gets its own timeout and survives cancellation of the parent context.
type Detacher struct {
	log     *zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDetacher(logger *zerolog.Logger, timeout time.Duration) *Detacher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "detached").Logger()
	return &Detacher{log: &l, timeout: timeout}
}

// Go starts fn. Context values of parent (trace ids) are kept, its deadline is not.
func (d *Detacher) Go(parent context.Context, task string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.timeout)
		defer cancel()

		if err := d.run(ctx, fn); err != nil {
			metrics.IncDetachedFailure(task)
			d.log.Warn().Err(err).Str("task", task).Msg("detached task failed")
		}
	}()
}

func (d *Detacher) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started task returned.
func (d *Detacher) Wait() { d.wg.Wait() }
