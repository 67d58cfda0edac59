//go:build !integration

package model

import (
	"encoding/json"
	"testing"
	"time"
)

// --- Generation Job Tests ---

func TestGenerationJobValidate(t *testing.T) {
	valid := GenerationJob{TenantID: "t1", UserID: "u1", ConversationID: "c1", Trigger: TriggerMention}

	t.Run("should accept a complete job", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should reject an unknown trigger", func(t *testing.T) {
		j := valid
		j.Trigger = "reaction"
		if err := j.Validate(); err == nil {
			t.Fatal("expected an error for unknown trigger, but got nil")
		}
	})

	t.Run("should reject a missing tenant", func(t *testing.T) {
		j := valid
		j.TenantID = ""
		if err := j.Validate(); err == nil {
			t.Fatal("expected an error for missing tenant, but got nil")
		}
	})
}

func TestNewJob(t *testing.T) {
	t.Run("should envelope a payload under its own queue", func(t *testing.T) {
		job, err := NewJob(IndexPayload{TenantID: "t1", DocumentID: "d1"}, 0)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if job.Queue != QueueIndex {
			t.Errorf("expected queue %q, but got %q", QueueIndex, job.Queue)
		}
		if job.MaxAttempts != 1 {
			t.Errorf("expected max attempts to be clamped to 1, but got %d", job.MaxAttempts)
		}
		if job.Status != JobStatusPending {
			t.Errorf("expected pending status, but got %s", job.Status)
		}
		var back IndexPayload
		if err := json.Unmarshal(job.Payload, &back); err != nil || back.DocumentID != "d1" {
			t.Errorf("expected payload to carry document id, got %+v (err %v)", back, err)
		}
	})

	t.Run("should report exhaustion at max attempts", func(t *testing.T) {
		job := &Job{Attempts: 3, MaxAttempts: 3}
		if !job.Exhausted() {
			t.Error("expected job to be exhausted")
		}
	})
}

// --- Personalization and Usage Tests ---

func TestLearningPhaseFor(t *testing.T) {
	cases := map[int]LearningPhase{0: LearningColdStart, 4: LearningColdStart, 5: LearningInProgress, 24: LearningInProgress, 25: LearningPersonalized}
	for samples, want := range cases {
		if got := LearningPhaseFor(samples); got != want {
			t.Errorf("samples=%d: expected %s, got %s", samples, want, got)
		}
	}
}

func TestUsagePeriod(t *testing.T) {
	at := time.Date(2026, 3, 31, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	if got := UsagePeriod(at); got != "2026-04" {
		t.Errorf("expected period to be computed in UTC (2026-04), got %s", got)
	}
}

// --- Guardrail Model Tests ---

func TestGuardrailConfig(t *testing.T) {
	t.Run("should cap custom keywords at the plan bound", func(t *testing.T) {
		cfg := &GuardrailConfig{CustomKeywords: []string{"a", "b", "c"}, MaxCustomKeywords: 2}
		if got := cfg.Keywords(); len(got) != 2 {
			t.Errorf("expected 2 keywords, got %v", got)
		}
	})

	t.Run("should treat unknown trigger modes as soft warning", func(t *testing.T) {
		if got := ParseTriggerMode(" HARD_BLOCK "); got != TriggerHardBlock {
			t.Errorf("expected hard_block, got %s", got)
		}
		if got := ParseTriggerMode("shout"); got != TriggerSoftWarning {
			t.Errorf("expected soft_warning fallback, got %s", got)
		}
	})

	t.Run("nil config is empty", func(t *testing.T) {
		var cfg *GuardrailConfig
		if !cfg.Empty() {
			t.Error("expected nil config to be empty")
		}
	})
}

func TestModelPricingCost(t *testing.T) {
	p := NewModelPricing("gpt-4o-mini", 2, 5, true)
	if got := p.Cost(TokenUsage{InputTokens: 100, OutputTokens: 10}); got != 250 {
		t.Errorf("expected 250 micros, got %d", got)
	}
}
