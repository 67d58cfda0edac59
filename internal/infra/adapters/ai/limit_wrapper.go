package ai

import (
	"context"
	"time"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/infra/metrics"
)

// Compile-time check
var _ adapter.LanguageModelProvider = (*limitedAI)(nil)

// limitedAI caps in-flight provider calls and records call metrics.
type limitedAI struct {
	inner adapter.LanguageModelProvider
	sem   chan struct{}
}

// NewLimitedAI wraps inner; maxConcurrent <= 0 only adds metrics.
func NewLimitedAI(inner adapter.LanguageModelProvider, maxConcurrent int) adapter.LanguageModelProvider {
	l := &limitedAI{inner: inner}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) acquire(ctx context.Context) error {
	if l.sem == nil {
		return nil
	}
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedAI) release() {
	if l.sem != nil {
		<-l.sem
	}
}

func (l *limitedAI) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.Completion{}, err
	}
	defer l.release()

	start := time.Now()
	out, err := l.inner.Complete(ctx, req)
	provider := out.Provider
	if provider == "" {
		provider = l.inner.Name()
	}
	metrics.ObserveCompletion(provider, req.Model, out.Usage.InputTokens, out.Usage.OutputTokens, time.Since(start), err == nil)
	return out, err
}

func (l *limitedAI) Stream(ctx context.Context, req adapter.CompletionRequest, onDelta func(string) error) (model.TokenUsage, error) {
	if err := l.acquire(ctx); err != nil {
		return model.TokenUsage{}, err
	}
	defer l.release()

	start := time.Now()
	usage, err := l.inner.Stream(ctx, req, onDelta)
	metrics.ObserveCompletion(l.inner.Name(), req.Model, usage.InputTokens, usage.OutputTokens, time.Since(start), err == nil)
	return usage, err
}
