package worker

import (
	"encoding/json"
	"time"

	"reply-assistant/internal/domain/model"
)

// CompletedEvent is emitted after a job's result is stored.
type CompletedEvent struct {
	JobID    string
	Queue    model.QueueName
	Attempt  int
	Result   json.RawMessage
	Duration time.Duration
}

// FailedEvent is emitted after every failed attempt. WillRetry is false when
// the job has reached a terminal state.
type FailedEvent struct {
	JobID     string
	Queue     model.QueueName
	Attempt   int
	Err       error
	WillRetry bool
	RetryAt   time.Time
}
