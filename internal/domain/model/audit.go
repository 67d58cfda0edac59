package model

import "time"

// SuggestionRecord is the audit row of a produced suggestion.
type SuggestionRecord struct {
	ID             string
	TenantID       string
	UserID         string
	ConversationID string
	Trigger        Trigger
	Text           string
	DenialReason   string
	Warnings       []string
	Model          string
	ProcessingMS   int64
	CreatedAt      time.Time
}

// CostEntry records the spend of one provider call.
type CostEntry struct {
	ID           string
	TenantID     string
	UserID       string
	SuggestionID string
	Model        string
	Usage        TokenUsage
	CostMicros   int64
	CreatedAt    time.Time
}

// Sentiment risk levels.
type SentimentRisk string

const (
	RiskLow    SentimentRisk = "low"
	RiskMedium SentimentRisk = "medium"
	RiskHigh   SentimentRisk = "high"
)

// SentimentResult is a classifier verdict.
type SentimentResult struct {
	Score float64
	Label string
	Risk  SentimentRisk
}

// TopicRecord ties a detected topic to a suggestion.
type TopicRecord struct {
	TenantID       string
	ConversationID string
	SuggestionID   string
	Topic          string
	CreatedAt      time.Time
}

// SentimentRecord stores the sentiment of a triggering message.
type SentimentRecord struct {
	TenantID       string
	ConversationID string
	SuggestionID   string
	Result         SentimentResult
	CreatedAt      time.Time
}

// Escalation flags a conversation whose tone needs human attention.
type Escalation struct {
	TenantID       string
	ConversationID string
	Score          float64
	Excerpt        string
	DetectedAt     time.Time
}
