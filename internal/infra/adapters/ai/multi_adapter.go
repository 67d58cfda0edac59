// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
)

var _ adapter.LanguageModelProvider = (*MultiAIAdapter)(nil)

// ErrNoProvider is returned when no backend is configured.
var ErrNoProvider = errors.New("ai: no provider configured")

type MultiAIAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.LanguageModelProvider
	modelToProvider map[string]string // model -> provider
}

// NewMultiAIAdapter does not inject any default model; it only knows a default provider.
// Each provider adapter is responsible for its own default model.
func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.LanguageModelProvider,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiAIAdapter) Name() string { return "multi" }

func (m *MultiAIAdapter) resolveProvider(modelName string) string {
	if p := m.modelToProvider[modelName]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(modelName)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return "openai"
	case strings.HasPrefix(l, "anthropic."), strings.HasPrefix(l, "claude"), strings.Contains(l, ".anthropic."):
		return "bedrock"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(modelName string) adapter.LanguageModelProvider {
	prov := m.resolveProvider(modelName)
	if a := m.byProvider[prov]; a != nil {
		return a
	}
	if a := m.byProvider[m.defaultProvider]; a != nil {
		return a
	}
	// last resort: first available
	for _, a := range m.byProvider {
		if a != nil {
			return a
		}
	}
	return nil
}

func (m *MultiAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	a := m.pick(req.Model)
	if a == nil {
		return adapter.Completion{}, ErrNoProvider
	}
	out, err := a.Complete(ctx, req)
	if out.Provider == "" {
		out.Provider = a.Name()
	}
	return out, err
}

func (m *MultiAIAdapter) Stream(ctx context.Context, req adapter.CompletionRequest, onDelta func(string) error) (model.TokenUsage, error) {
	a := m.pick(req.Model)
	if a == nil {
		return model.TokenUsage{}, ErrNoProvider
	}
	return a.Stream(ctx, req, onDelta)
}
