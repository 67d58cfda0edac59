package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

var (
	_ repository.SuggestionRepository = (*auditRepo)(nil)
	_ repository.CostRepository       = (*auditRepo)(nil)
	_ repository.EnrichmentRepository = (*auditRepo)(nil)
	_ repository.EscalationRepository = (*auditRepo)(nil)
)

// auditRepo holds the write-only history of produced suggestions.
type auditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Save(ctx context.Context, tx repository.Tx, rec *model.SuggestionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	warnings := rec.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	const q = `
INSERT INTO suggestions (id, tenant_id, user_id, conversation_id, trigger, text, denial_reason, warnings, model, processing_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, rec.ID, rec.TenantID, rec.UserID, rec.ConversationID, string(rec.Trigger),
		rec.Text, rec.DenialReason, warnings, rec.Model, rec.ProcessingMS, rec.CreatedAt)
	return err
}

func (r *auditRepo) Record(ctx context.Context, tx repository.Tx, e *model.CostEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO ai_costs (id, tenant_id, user_id, suggestion_id, model, input_tokens, output_tokens, cost_micros, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.TenantID, e.UserID, e.SuggestionID, e.Model,
		e.Usage.InputTokens, e.Usage.OutputTokens, e.CostMicros, e.CreatedAt)
	return err
}

func (r *auditRepo) SaveTopics(ctx context.Context, tx repository.Tx, topics []model.TopicRecord) error {
	if len(topics) == 0 {
		return nil
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO suggestion_topics (tenant_id, conversation_id, suggestion_id, topic, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (suggestion_id, topic) DO NOTHING;`
	batch := &pgx.Batch{}
	for _, t := range topics {
		at := t.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		batch.Queue(q, t.TenantID, t.ConversationID, t.SuggestionID, t.Topic, at)
	}
	return sendBatch(ctx, ex, batch)
}

func (r *auditRepo) SaveSentiment(ctx context.Context, tx repository.Tx, s *model.SentimentRecord) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO suggestion_sentiment (suggestion_id, tenant_id, conversation_id, score, label, risk, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (suggestion_id) DO UPDATE SET score = EXCLUDED.score, label = EXCLUDED.label, risk = EXCLUDED.risk;`
	_, err := execSQL(ctx, r.pool, tx, q, s.SuggestionID, s.TenantID, s.ConversationID,
		s.Result.Score, s.Result.Label, string(s.Result.Risk), s.CreatedAt)
	return err
}

func (r *auditRepo) SaveAll(ctx context.Context, tx repository.Tx, items []model.Escalation) error {
	if len(items) == 0 {
		return nil
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO escalations (id, tenant_id, conversation_id, score, excerpt, detected_at)
VALUES ($1, $2, $3, $4, $5, $6);`
	batch := &pgx.Batch{}
	for _, e := range items {
		at := e.DetectedAt
		if at.IsZero() {
			at = time.Now()
		}
		batch.Queue(q, uuid.NewString(), e.TenantID, e.ConversationID, e.Score, e.Excerpt, at)
	}
	return sendBatch(ctx, ex, batch)
}
