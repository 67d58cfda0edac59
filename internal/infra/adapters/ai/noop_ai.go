package ai

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
)

var _ adapter.LanguageModelProvider = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers locally for dev runs. It logs prompts instead of
// sending real AI requests.
type NoopAIAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NoopAIAdapter{log: logger, delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) reply(req adapter.CompletionRequest) string {
	prompt := strings.TrimSpace(req.UserPrompt)
	if len(prompt) > 60 {
		prompt = prompt[:60]
	}
	return "Thanks for the message, I will get back to you shortly. (" + prompt + ")"
}

func (a *NoopAIAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(a.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *NoopAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	if err := a.wait(ctx); err != nil {
		return adapter.Completion{}, err
	}
	a.log.Debug().Int("system_blocks", len(req.SystemBlocks)).Int("prompt_chars", len(req.UserPrompt)).Msg("noop completion")
	text := a.reply(req)
	return adapter.Completion{
		Text:     text,
		Usage:    model.TokenUsage{InputTokens: len(req.UserPrompt) / 4, OutputTokens: len(text) / 4},
		Provider: a.Name(),
	}, nil
}

func (a *NoopAIAdapter) Stream(ctx context.Context, req adapter.CompletionRequest, onDelta func(string) error) (model.TokenUsage, error) {
	out, err := a.Complete(ctx, req)
	if err != nil {
		return model.TokenUsage{}, err
	}
	for _, w := range strings.SplitAfter(out.Text, " ") {
		if err := onDelta(w); err != nil {
			return out.Usage, err
		}
	}
	return out.Usage, nil
}
