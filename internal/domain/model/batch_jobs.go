package model

import "time"

// WriteBackPayload appends a row to an external sheet through its webhook.
type WriteBackPayload struct {
	TenantID   string   `json:"tenant_id"`
	WebhookURL string   `json:"webhook_url"`
	Sheet      string   `json:"sheet"`
	Row        []string `json:"row"`
}

func (WriteBackPayload) Queue() QueueName { return QueueWriteBack }

type WriteBackResult struct {
	Columns int `json:"columns"`
}

// ReportPayload requests a monthly usage summary.
type ReportPayload struct {
	TenantID    string `json:"tenant_id"`
	Period      string `json:"period"`
	CallbackURL string `json:"callback_url,omitempty"`
}

func (ReportPayload) Queue() QueueName { return QueueReport }

type ReportResult struct {
	Total       int64 `json:"total"`
	ActiveUsers int64 `json:"active_users"`
	Delivered   bool  `json:"delivered"`
}

// BatchScanPayload scans a set of conversation messages for escalation risk.
type BatchScanPayload struct {
	TenantID       string           `json:"tenant_id"`
	ConversationID string           `json:"conversation_id"`
	Messages       []ContextMessage `json:"messages"`
}

func (BatchScanPayload) Queue() QueueName { return QueueBatchScan }

type BatchScanResult struct {
	Scanned     int `json:"scanned"`
	Escalations int `json:"escalations"`
}

// IndexPayload chunks a document into the knowledge base.
type IndexPayload struct {
	TenantID   string `json:"tenant_id"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

func (IndexPayload) Queue() QueueName { return QueueIndex }

type IndexResult struct {
	Chunks int `json:"chunks"`
}

// RetentionPayload purges rows older than the retention window.
type RetentionPayload struct {
	OlderThanDays int `json:"older_than_days"`
}

func (RetentionPayload) Queue() QueueName { return QueueRetention }

type RetentionResult struct {
	Purged int64 `json:"purged"`
}

// AggregationPayload rolls up topic trends for one day.
type AggregationPayload struct {
	Day time.Time `json:"day"`
}

func (AggregationPayload) Queue() QueueName { return QueueAggregation }

type AggregationResult struct {
	Rows int64 `json:"rows"`
}
