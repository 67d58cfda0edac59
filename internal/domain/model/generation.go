package model

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// Trigger is the kind of platform event that asked for a suggestion.
type Trigger string

const (
	TriggerMention      Trigger = "mention"
	TriggerReply        Trigger = "reply"
	TriggerThread       Trigger = "thread"
	TriggerManualAction Trigger = "manual_action"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerMention, TriggerReply, TriggerThread, TriggerManualAction:
		return true
	}
	return false
}

// ContextMessage is one prior message of the conversation.
type ContextMessage struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerationJob is the payload of the generation queue. It is never mutated
// after enqueue.
type GenerationJob struct {
	TenantID        string           `json:"tenant_id"`
	UserID          string           `json:"user_id"`
	ConversationID  string           `json:"conversation_id"`
	Trigger         Trigger          `json:"trigger"`
	TriggerText     string           `json:"trigger_text"`
	ContextMessages []ContextMessage `json:"context_messages,omitempty"`
	ThreadID        string           `json:"thread_id,omitempty"`
	CallbackURL     string           `json:"callback_url,omitempty"`
	DirectContext   bool             `json:"direct_context,omitempty"`
	PersonIDs       []string         `json:"person_ids,omitempty"`
}

func (GenerationJob) Queue() QueueName { return QueueGeneration }

// Validate checks the fields every generation needs.
func (j GenerationJob) Validate() error {
	switch {
	case j.TenantID == "":
		return errors.New("tenant id is required")
	case j.UserID == "":
		return errors.New("user id is required")
	case j.ConversationID == "":
		return errors.New("conversation id is required")
	case !j.Trigger.Valid():
		return errors.New("unknown trigger " + string(j.Trigger))
	}
	return nil
}

// LearningPhase describes how much of the user's own writing the style layer has seen.
type LearningPhase string

const (
	LearningColdStart    LearningPhase = "cold_start"
	LearningInProgress   LearningPhase = "learning"
	LearningPersonalized LearningPhase = "personalized"
)

// LearningPhaseFor maps a style sample count to its phase.
func LearningPhaseFor(samples int) LearningPhase {
	switch {
	case samples < 5:
		return LearningColdStart
	case samples < 25:
		return LearningInProgress
	default:
		return LearningPersonalized
	}
}

type Personalization struct {
	LearningPhase LearningPhase `json:"learning_phase"`
	HistoryUsed   bool          `json:"history_used"`
}

// TokenUsage is the provider-reported token count for one or more calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// Suggestion is the result of one generation. ID is assigned even when usage
// is denied or delivery later fails.
type Suggestion struct {
	ID              string
	Text            string
	ProcessingTime  time.Duration
	Personalization Personalization
	DenialReason    string
	Warnings        []string
	Model           string
	Usage           TokenUsage
	Regenerated     bool
}

// Denied reports whether generation was refused by the usage gate.
func (s *Suggestion) Denied() bool { return s.DenialReason != "" }

// NewSuggestionID returns a lexically sortable suggestion id.
func NewSuggestionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// RefineRequest asks for a revision of a previously shown suggestion.
type RefineRequest struct {
	TenantID       string           `json:"tenant_id"`
	UserID         string           `json:"user_id"`
	ConversationID string           `json:"conversation_id"`
	SuggestionID   string           `json:"suggestion_id"`
	Previous       string           `json:"previous"`
	Instruction    string           `json:"instruction"`
	History        []ContextMessage `json:"history,omitempty"`
}

func (r RefineRequest) Validate() error {
	switch {
	case r.TenantID == "" || r.UserID == "":
		return errors.New("tenant and user are required")
	case r.Previous == "":
		return errors.New("previous suggestion text is required")
	case r.Instruction == "":
		return errors.New("instruction is required")
	}
	return nil
}

// JobOutcome is stored as the completed generation job's result.
type JobOutcome struct {
	SuggestionID   string        `json:"suggestion_id"`
	Text           string        `json:"text,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	Delivered      bool          `json:"delivered"`
	DeliveryMode   DeliveryMode  `json:"delivery_mode,omitempty"`
	DenialReason   string        `json:"denial_reason,omitempty"`
}
