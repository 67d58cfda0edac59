package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain/ports/repository"
)

var (
	_ repository.RetentionRepository = (*maintenanceRepo)(nil)
	_ repository.TrendRepository     = (*maintenanceRepo)(nil)
)

type maintenanceRepo struct {
	pool *pgxpool.Pool
}

func NewMaintenanceRepo(pool *pgxpool.Pool) *maintenanceRepo {
	return &maintenanceRepo{pool: pool}
}

// retentionStatements purge by creation time; each returns its deleted count.
var retentionStatements = []string{
	`DELETE FROM guardrail_violations WHERE created_at < $1;`,
	`DELETE FROM suggestion_topics WHERE created_at < $1;`,
	`DELETE FROM suggestion_sentiment WHERE created_at < $1;`,
	`DELETE FROM ai_costs WHERE created_at < $1;`,
	`DELETE FROM auto_response_log WHERE created_at < $1;`,
	`DELETE FROM escalations WHERE detected_at < $1;`,
	`DELETE FROM suggestions WHERE created_at < $1;`,
	`DELETE FROM jobs WHERE status IN ('completed', 'failed') AND updated_at < $1;`,
}

func (r *maintenanceRepo) Purge(ctx context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	var total int64
	for _, q := range retentionStatements {
		tag, err := execSQL(ctx, r.pool, tx, q, cutoff)
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (r *maintenanceRepo) RollupDay(ctx context.Context, tx repository.Tx, day time.Time) (int64, error) {
	const q = `
INSERT INTO topic_trends (day, tenant_id, topic, mentions)
SELECT $1::date, tenant_id, topic, count(*)
  FROM suggestion_topics
 WHERE created_at >= $1::date AND created_at < $1::date + 1
 GROUP BY tenant_id, topic
ON CONFLICT (day, tenant_id, topic) DO UPDATE SET mentions = EXCLUDED.mentions;`
	tag, err := execSQL(ctx, r.pool, tx, q, day.UTC().Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
