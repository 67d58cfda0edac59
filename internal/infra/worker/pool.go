// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

// Pool runs one queue worker per registered queue over a durable job store.
// Construct it once at startup and pass it by reference.
type Pool struct {
	store     repository.JobRepository
	limiter   Limiter
	log       *zerolog.Logger
	permanent func(error) bool

	mu       sync.Mutex
	regs     map[model.QueueName]*registration
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	workers  []*queueWorker
	onDone   []func(CompletedEvent)
	onFailed []func(FailedEvent)
}

type Option func(*Pool)

// WithLimiter sets the shared rate limiter. Without one an in-process
// LocalLimiter is used.
func WithLimiter(l Limiter) Option {
	return func(p *Pool) {
		if l != nil {
			p.limiter = l
		}
	}
}

// WithPermanentErrors adds a classifier for errors that must not be retried,
// on top of errors wrapped with Permanent.
func WithPermanentErrors(fn func(error) bool) Option {
	return func(p *Pool) { p.permanent = fn }
}

func NewPool(store repository.JobRepository, log *zerolog.Logger, opts ...Option) *Pool {
	l := log.With().Str("component", "worker_pool").Logger()
	p := &Pool{
		store:   store,
		limiter: NewLocalLimiter(),
		log:     &l,
		regs:    map[model.QueueName]*registration{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pool) add(r *registration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[r.queue] = r
}

// OnCompleted registers a listener for completed jobs. Listeners run on the
// worker goroutine and must not block.
func (p *Pool) OnCompleted(fn func(CompletedEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDone = append(p.onDone, fn)
}

// OnFailed registers a listener for failed attempts.
func (p *Pool) OnFailed(fn func(FailedEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFailed = append(p.onFailed, fn)
}

// Enqueue stores payload as a pending job on its queue and returns the job id.
func (p *Pool) Enqueue(ctx context.Context, payload model.Payload) (string, error) {
	if payload == nil {
		return "", errors.New("nil payload")
	}
	attempts := 1
	p.mu.Lock()
	if r, ok := p.regs[payload.Queue()]; ok {
		attempts = r.cfg.MaxAttempts
	}
	p.mu.Unlock()

	job, err := model.NewJob(payload, attempts)
	if err != nil {
		return "", fmt.Errorf("encode %s job: %w", payload.Queue(), err)
	}
	if err := p.store.Enqueue(ctx, nil, job); err != nil {
		return "", fmt.Errorf("enqueue %s job: %w", payload.Queue(), err)
	}
	return job.ID, nil
}

// Start launches a worker for every registered queue. Calling Start on a
// running pool is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.workers = p.workers[:0]

	queues := make([]string, 0, len(p.regs))
	for q := range p.regs {
		queues = append(queues, string(q))
	}
	sort.Strings(queues)
	for _, q := range queues {
		w := newQueueWorker(p, p.regs[model.QueueName(q)])
		p.workers = append(p.workers, w)
		w.start(runCtx, &p.wg)
	}
	p.log.Info().Strs("queues", queues).Msg("worker pool started")
}

// Stop stops claiming new jobs, waits for in-flight jobs to finish and
// returns. It is safe to call on a pool that never started.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.log.Info().Msg("worker pool stopped")
}

func (p *Pool) isPermanent(err error) bool {
	if IsPermanent(err) {
		return true
	}
	return p.permanent != nil && p.permanent(err)
}

func (p *Pool) emitCompleted(ev CompletedEvent) {
	p.mu.Lock()
	ls := append([]func(CompletedEvent)(nil), p.onDone...)
	p.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

func (p *Pool) emitFailed(ev FailedEvent) {
	p.mu.Lock()
	ls := append([]func(FailedEvent)(nil), p.onFailed...)
	p.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}
