package model

import "strings"

// TriggerMode selects what happens when a suggestion violates a guardrail.
type TriggerMode string

const (
	TriggerHardBlock   TriggerMode = "hard_block"
	TriggerRegenerate  TriggerMode = "regenerate"
	TriggerSoftWarning TriggerMode = "soft_warning"
)

// ParseTriggerMode normalizes a stored mode; unknown values fall back to soft_warning.
func ParseTriggerMode(s string) TriggerMode {
	switch m := TriggerMode(strings.ToLower(strings.TrimSpace(s))); m {
	case TriggerHardBlock, TriggerRegenerate, TriggerSoftWarning:
		return m
	}
	return TriggerSoftWarning
}

// GuardrailConfig is the tenant's content policy. Read-only to the pipeline.
type GuardrailConfig struct {
	TenantID          string      `json:"tenant_id"`
	EnabledCategories []string    `json:"enabled_categories"`
	CustomKeywords    []string    `json:"custom_keywords"`
	TriggerMode       TriggerMode `json:"trigger_mode"`
	MaxCustomKeywords int         `json:"max_custom_keywords"`
}

// Empty reports whether the config has nothing to enforce.
func (c *GuardrailConfig) Empty() bool {
	return c == nil || (len(c.EnabledCategories) == 0 && len(c.CustomKeywords) == 0)
}

// Keywords returns the custom keywords capped at the plan bound.
func (c *GuardrailConfig) Keywords() []string {
	if c.MaxCustomKeywords > 0 && len(c.CustomKeywords) > c.MaxCustomKeywords {
		return c.CustomKeywords[:c.MaxCustomKeywords]
	}
	return c.CustomKeywords
}

type ViolationType string

const (
	ViolationCategory      ViolationType = "category"
	ViolationCustomKeyword ViolationType = "custom_keyword"
)

// GuardrailViolation is one matched rule.
type GuardrailViolation struct {
	Type        ViolationType `json:"type"`
	Rule        string        `json:"rule"`
	MatchedText string        `json:"matched_text"`
}

// CheckResult is the raw scan outcome.
type CheckResult struct {
	Violated   bool
	Violations []GuardrailViolation
}

type DecisionKind int

const (
	DecisionClean DecisionKind = iota
	DecisionBlocked
	DecisionRegenerate
	DecisionWarned
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionBlocked:
		return "blocked"
	case DecisionRegenerate:
		return "regenerate"
	case DecisionWarned:
		return "warned"
	default:
		return "clean"
	}
}

// GuardrailDecision is the enforcement verdict. Text is set for Clean and
// Warned, AvoidTopics for Regenerate, Warnings for Warned.
type GuardrailDecision struct {
	Kind        DecisionKind
	Text        string
	AvoidTopics []string
	Warnings    []string
	Violations  []GuardrailViolation
}

// ViolationRecord is the persisted form of a violation.
type ViolationRecord struct {
	ID           string
	TenantID     string
	UserID       string
	SuggestionID string
	Mode         TriggerMode
	Violation    GuardrailViolation
}
