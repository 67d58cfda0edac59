package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
)

var _ adapter.LanguageModelProvider = (*BedrockAdapter)(nil)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// BedrockAdapter calls Anthropic models hosted on AWS Bedrock.
type BedrockAdapter struct {
	client       *bedrockruntime.Client
	defaultModel string
}

func NewBedrockAdapter(ctx context.Context, region, defaultModel string) (*BedrockAdapter, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if defaultModel == "" {
		defaultModel = "anthropic.claude-3-5-haiku-20241022-v1:0"
	}
	return &BedrockAdapter{client: bedrockruntime.NewFromConfig(cfg), defaultModel: defaultModel}, nil
}

func (b *BedrockAdapter) Name() string { return "bedrock" }

type bedrockCacheControl struct {
	Type string `json:"type"`
}

type bedrockContentBlock struct {
	Type         string               `json:"type"`
	Text         string               `json:"text,omitempty"`
	CacheControl *bedrockCacheControl `json:"cache_control,omitempty"`
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string                `json:"anthropic_version"`
	MaxTokens        int                   `json:"max_tokens"`
	System           []bedrockContentBlock `json:"system,omitempty"`
	Messages         []bedrockMessage      `json:"messages"`
	Temperature      float64               `json:"temperature,omitempty"`
}

type bedrockUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string       `json:"stop_reason"`
	Usage      bedrockUsage `json:"usage"`
}

// bedrockEvent covers the stream event shapes we read.
type bedrockEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage bedrockUsage `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage bedrockUsage `json:"usage"`
}

// buildBedrockRequest marks cacheable system blocks with an ephemeral cache breakpoint.
func buildBedrockRequest(req adapter.CompletionRequest) bedrockRequest {
	out := bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContentBlock{{Type: "text", Text: req.UserPrompt}},
		}},
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = 1024
	}
	for _, blk := range req.SystemBlocks {
		if strings.TrimSpace(blk.Text) == "" {
			continue
		}
		cb := bedrockContentBlock{Type: "text", Text: blk.Text}
		if blk.Cacheable {
			cb.CacheControl = &bedrockCacheControl{Type: "ephemeral"}
		}
		out.System = append(out.System, cb)
	}
	return out
}

func (b *BedrockAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	body, err := json.Marshal(buildBedrockRequest(req))
	if err != nil {
		return adapter.Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelOrDefault(req.Model, b.defaultModel)),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return adapter.Completion{}, fmt.Errorf("bedrock invoke: %w", err)
	}
	var resp bedrockResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return adapter.Completion{}, fmt.Errorf("failed to parse response: %w", err)
	}
	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return adapter.Completion{
		Text:     sb.String(),
		Usage:    model.TokenUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
		Provider: b.Name(),
	}, nil
}

func (b *BedrockAdapter) Stream(ctx context.Context, req adapter.CompletionRequest, onDelta func(string) error) (model.TokenUsage, error) {
	body, err := json.Marshal(buildBedrockRequest(req))
	if err != nil {
		return model.TokenUsage{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	output, err := b.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(modelOrDefault(req.Model, b.defaultModel)),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return model.TokenUsage{}, fmt.Errorf("bedrock stream: %w", err)
	}
	stream := output.GetStream()
	defer stream.Close()

	var usage model.TokenUsage
	for ev := range stream.Events() {
		chunk, ok := ev.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var e bedrockEvent
		if err := json.Unmarshal(chunk.Value.Bytes, &e); err != nil {
			return usage, fmt.Errorf("bedrock stream event: %w", err)
		}
		switch e.Type {
		case "message_start":
			usage.InputTokens = e.Message.Usage.InputTokens
		case "message_delta":
			usage.OutputTokens = e.Usage.OutputTokens
		case "content_block_delta":
			if e.Delta.Text == "" {
				continue
			}
			if err := onDelta(e.Delta.Text); err != nil {
				return usage, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return usage, fmt.Errorf("bedrock stream: %w", err)
	}
	return usage, nil
}
