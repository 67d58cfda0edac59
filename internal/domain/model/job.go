package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueName identifies one durable queue.
type QueueName string

const (
	QueueGeneration  QueueName = "generation"
	QueueWriteBack   QueueName = "write-back"
	QueueReport      QueueName = "report"
	QueueBatchScan   QueueName = "batch-scan"
	QueueIndex       QueueName = "index"
	QueueRetention   QueueName = "retention"
	QueueAggregation QueueName = "aggregation"
)

// AllQueues lists every queue the service knows about.
func AllQueues() []QueueName {
	return []QueueName{
		QueueGeneration, QueueWriteBack, QueueReport, QueueBatchScan,
		QueueIndex, QueueRetention, QueueAggregation,
	}
}

// Payload is implemented by every typed job payload. The method must have a
// value receiver so that the zero value reports its queue.
type Payload interface {
	Queue() QueueName
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is the durable envelope around a queued payload.
type Job struct {
	ID          string
	Queue       QueueName
	Payload     json.RawMessage
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LastError   string
	Result      json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewJob encodes payload into a pending job ready to run now.
func NewJob(p Payload, maxAttempts int) (*Job, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.NewString(),
		Queue:       p.Queue(),
		Payload:     raw,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Exhausted reports whether the job has used all of its attempts.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
