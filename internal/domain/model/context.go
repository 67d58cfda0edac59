package model

import "time"

// StyleProfile is the learned writing style of one user.
type StyleProfile struct {
	TenantID    string
	UserID      string
	Summary     string
	Examples    []string
	SampleCount int
	UpdatedAt   time.Time
}

// Note is a saved note about a conversation or a person.
type Note struct {
	Subject   string
	Body      string
	CreatedAt time.Time
}

// ResponseTemplate is an organization-approved canned answer.
type ResponseTemplate struct {
	ID    string
	Title string
	Body  string
	Score float64
}

// ClientProfile is the relationship context of the counterpart in a conversation.
type ClientProfile struct {
	Name         string
	Company      string
	Tier         string
	Relationship string
	Notes        string
}

// KnowledgeExcerpt is one knowledge-base hit.
type KnowledgeExcerpt struct {
	DocumentID string
	Title      string
	Text       string
	Score      float64
}
