package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.LanguageModelProvider = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.LanguageModelProvider with the Chat Completions API.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

func NewOpenAIAdapter(apiKey, baseURL, defaultModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{client: openai.NewClient(opts...), model: defaultModel}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

// params maps each system block to its own system message so the stable
// prefix stays byte-identical across calls and hits the provider's prompt cache.
func (o *OpenAIAdapter) params(req adapter.CompletionRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.SystemBlocks)+1)
	for _, b := range req.SystemBlocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		msgs = append(msgs, openai.SystemMessage(b.Text))
	}
	msgs = append(msgs, openai.UserMessage(req.UserPrompt))

	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelOrDefault(req.Model, o.model)),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		p.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		p.Temperature = openai.Float(req.Temperature)
	}
	return p
}

func (o *OpenAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.params(req))
	if err != nil {
		return adapter.Completion{}, fmt.Errorf("openai completion: %w", err)
	}
	out := adapter.Completion{
		Provider: o.Name(),
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			out.Text = c.Message.Content
			break
		}
	}
	return out, nil
}

func (o *OpenAIAdapter) Stream(ctx context.Context, req adapter.CompletionRequest, onDelta func(string) error) (model.TokenUsage, error) {
	p := o.params(req)
	p.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := o.client.Chat.Completions.NewStreaming(ctx, p)
	defer stream.Close()

	var usage model.TokenUsage
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage = model.TokenUsage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
			}
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			if err := onDelta(c.Delta.Content); err != nil {
				return usage, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return usage, fmt.Errorf("openai stream: %w", err)
	}
	return usage, nil
}

func modelOrDefault(m, def string) string {
	if strings.TrimSpace(m) != "" {
		return m
	}
	return def
}
