package ai

import (
	"encoding/json"
	"strings"
	"testing"

	"reply-assistant/internal/domain/ports/adapter"
)

func TestBuildBedrockRequest(t *testing.T) {
	req := buildBedrockRequest(adapter.CompletionRequest{
		SystemBlocks: []adapter.SystemBlock{
			{Text: "directive"},
			{Text: "style", Cacheable: true},
			{Text: "   "},
		},
		UserPrompt: "hi",
	})

	if req.MaxTokens != 1024 {
		t.Errorf("expected default max tokens, got %d", req.MaxTokens)
	}
	if len(req.System) != 2 {
		t.Fatalf("expected blank blocks to be dropped, got %d blocks", len(req.System))
	}
	if req.System[0].CacheControl != nil || req.System[1].CacheControl == nil {
		t.Errorf("only the cacheable block should carry cache_control")
	}

	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"cache_control":{"type":"ephemeral"}`) {
		t.Errorf("missing cache breakpoint in %s", b)
	}
	if strings.Count(string(b), "cache_control") != 1 {
		t.Errorf("cache_control should be omitted on plain blocks: %s", b)
	}
}
