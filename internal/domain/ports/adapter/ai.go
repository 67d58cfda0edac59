package adapter

import (
	"context"

	"reply-assistant/internal/domain/model"
)

// SystemBlock is one layer of the system prompt. Cacheable blocks are stable
// across calls for the same user and may be cached by the provider.
type SystemBlock struct {
	Text      string
	Cacheable bool
}

// CompletionRequest is a single-turn completion request.
type CompletionRequest struct {
	Model        string
	SystemBlocks []SystemBlock
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Completion is the provider reply.
type Completion struct {
	Text     string
	Usage    model.TokenUsage
	Provider string
}

// LanguageModelProvider is the port for text generation.
type LanguageModelProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	// Stream calls onDelta for each text fragment; an error from onDelta aborts the stream.
	Stream(ctx context.Context, req CompletionRequest, onDelta func(string) error) (model.TokenUsage, error)
}
