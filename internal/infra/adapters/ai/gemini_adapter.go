package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
)

var _ adapter.LanguageModelProvider = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

// config folds the system blocks into one system instruction; Gemini has no
// system role in the content history.
func (g *GeminiAdapter) config(req adapter.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	var parts []*genai.Part
	for _, b := range req.SystemBlocks {
		if strings.TrimSpace(b.Text) != "" {
			parts = append(parts, &genai.Part{Text: b.Text})
		}
	}
	if len(parts) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: parts}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	return cfg
}

func (g *GeminiAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	resp, err := g.client.Models.GenerateContent(ctx, modelOrDefault(req.Model, g.defaultModel), genai.Text(req.UserPrompt), g.config(req))
	if err != nil {
		return adapter.Completion{}, fmt.Errorf("gemini generate: %w", err)
	}
	return adapter.Completion{
		Text:     resp.Text(),
		Usage:    geminiUsage(resp),
		Provider: g.Name(),
	}, nil
}

func (g *GeminiAdapter) Stream(ctx context.Context, req adapter.CompletionRequest, onDelta func(string) error) (model.TokenUsage, error) {
	var usage model.TokenUsage
	for resp, err := range g.client.Models.GenerateContentStream(ctx, modelOrDefault(req.Model, g.defaultModel), genai.Text(req.UserPrompt), g.config(req)) {
		if err != nil {
			return usage, fmt.Errorf("gemini stream: %w", err)
		}
		if u := geminiUsage(resp); u.InputTokens > 0 || u.OutputTokens > 0 {
			usage = u
		}
		if t := resp.Text(); t != "" {
			if err := onDelta(t); err != nil {
				return usage, err
			}
		}
	}
	return usage, nil
}

func geminiUsage(resp *genai.GenerateContentResponse) model.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return model.TokenUsage{}
	}
	return model.TokenUsage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}
