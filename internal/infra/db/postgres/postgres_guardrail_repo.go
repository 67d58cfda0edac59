package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

var (
	_ repository.GuardrailConfigRepository = (*guardrailRepo)(nil)
	_ repository.ViolationRepository       = (*guardrailRepo)(nil)
)

type guardrailRepo struct {
	pool *pgxpool.Pool
}

func NewGuardrailRepo(pool *pgxpool.Pool) *guardrailRepo {
	return &guardrailRepo{pool: pool}
}

func (r *guardrailRepo) Get(ctx context.Context, tx repository.Tx, tenantID string) (*model.GuardrailConfig, error) {
	const q = `
SELECT g.enabled_categories, g.custom_keywords, g.trigger_mode, p.max_custom_keywords
  FROM guardrail_configs g
  JOIN tenants t ON t.id = g.tenant_id
  JOIN plans p ON p.id = t.plan_id
 WHERE g.tenant_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return nil, err
	}
	cfg := model.GuardrailConfig{TenantID: tenantID}
	var mode string
	if err := row.Scan(&cfg.EnabledCategories, &cfg.CustomKeywords, &mode, &cfg.MaxCustomKeywords); err != nil {
		return nil, scanErr(err)
	}
	cfg.TriggerMode = model.ParseTriggerMode(mode)
	return &cfg, nil
}

func (r *guardrailRepo) SaveAll(ctx context.Context, tx repository.Tx, records []model.ViolationRecord) error {
	if len(records) == 0 {
		return nil
	}
	const q = `
INSERT INTO guardrail_violations (id, tenant_id, user_id, suggestion_id, mode, type, rule, matched_text)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i := range records {
		v := &records[i]
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		batch.Queue(q, v.ID, v.TenantID, v.UserID, v.SuggestionID, string(v.Mode),
			string(v.Violation.Type), v.Violation.Rule, v.Violation.MatchedText)
	}
	return sendBatch(ctx, ex, batch)
}
