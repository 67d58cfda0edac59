package model

import "time"

type DeliveryMode string

const (
	DeliveryNone        DeliveryMode = "none"
	DeliveryAutoRespond DeliveryMode = "auto_respond"
	DeliveryWebhook     DeliveryMode = "webhook"
	DeliveryEphemeral   DeliveryMode = "ephemeral"
)

// DeliveryResult reports what the router did. Err never affects job status.
type DeliveryResult struct {
	Mode      DeliveryMode
	Delivered bool
	MessageID string
	Err       error
}

// DeliveryCredential is the encrypted platform token of a tenant.
type DeliveryCredential struct {
	TenantID       string
	EncryptedToken string
}

// AutoResponseEntry logs a message posted on the user's behalf so it can be undone.
type AutoResponseEntry struct {
	ID             string
	TenantID       string
	UserID         string
	ConversationID string
	MessageID      string
	SuggestionID   string
	CreatedAt      time.Time
}

// WebhookPayload is posted to a job's callback URL.
type WebhookPayload struct {
	ResponseType   string   `json:"response_type"`
	SuggestionID   string   `json:"suggestion_id"`
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	Text           string   `json:"text"`
	Warnings       []string `json:"warnings,omitempty"`
}
