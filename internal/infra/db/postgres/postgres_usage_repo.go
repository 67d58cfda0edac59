package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*usageRepo)(nil)

type usageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *usageRepo {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Check(ctx context.Context, tx repository.Tx, tenantID, userID, period string) (*model.UsageRecord, error) {
	const q = `
SELECT COALESCE(u.count, 0), p.monthly_limit, p.allow_overage, COALESCE(u.updated_at, now())
  FROM tenants t
  JOIN plans p ON p.id = t.plan_id
  LEFT JOIN usage_records u
    ON u.tenant_id = t.id AND u.user_id = $2 AND u.period = $3
 WHERE t.id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, userID, period)
	if err != nil {
		return nil, err
	}
	rec := model.UsageRecord{TenantID: tenantID, UserID: userID, Period: period}
	if err := row.Scan(&rec.Count, &rec.Limit, &rec.AllowOverage, &rec.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &rec, nil
}

// Increment is a single upsert so concurrent increments never lose updates.
func (r *usageRepo) Increment(ctx context.Context, tx repository.Tx, tenantID, userID, period string) (int64, error) {
	const q = `
INSERT INTO usage_records (tenant_id, user_id, period, count, updated_at)
VALUES ($1, $2, $3, 1, now())
ON CONFLICT (tenant_id, user_id, period) DO UPDATE
   SET count = usage_records.count + 1, updated_at = now()
RETURNING count;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, userID, period)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, scanErr(err)
	}
	return n, nil
}

func (r *usageRepo) MonthlySummary(ctx context.Context, tx repository.Tx, tenantID, period string, top int) (*model.UsageSummary, error) {
	const totals = `
SELECT COUNT(u.user_id), COALESCE(SUM(u.count), 0), p.monthly_limit
  FROM tenants t
  JOIN plans p ON p.id = t.plan_id
  LEFT JOIN usage_records u ON u.tenant_id = t.id AND u.period = $2
 WHERE t.id = $1
 GROUP BY p.monthly_limit;`
	row, err := pickRow(ctx, r.pool, tx, totals, tenantID, period)
	if err != nil {
		return nil, err
	}
	s := model.UsageSummary{TenantID: tenantID, Period: period}
	if err := row.Scan(&s.ActiveUsers, &s.Total, &s.Limit); err != nil {
		return nil, scanErr(err)
	}

	const topUsers = `
SELECT user_id, count FROM usage_records
 WHERE tenant_id = $1 AND period = $2
 ORDER BY count DESC, user_id
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, topUsers, tenantID, period, top)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u model.UserUsage
		if err := rows.Scan(&u.UserID, &u.Count); err != nil {
			return nil, scanErr(err)
		}
		s.TopUsers = append(s.TopUsers, u)
	}
	if err := rows.Err(); err != nil {
		return nil, scanErr(err)
	}
	return &s, nil
}
