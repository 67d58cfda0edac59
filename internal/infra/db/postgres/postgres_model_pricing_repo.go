package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

var _ repository.ModelPricingRepository = (*modelPricingRepo)(nil)

type modelPricingRepo struct {
	pool *pgxpool.Pool
}

func NewModelPricingRepo(pool *pgxpool.Pool) *modelPricingRepo {
	return &modelPricingRepo{pool: pool}
}

const pricingColumns = `id, model_name, input_token_price_micros, output_token_price_micros, active, created_at, updated_at`

func scanPricing(row interface{ Scan(dest ...interface{}) error }) (*model.ModelPricing, error) {
	var p model.ModelPricing
	if err := row.Scan(&p.ID, &p.ModelName, &p.InputTokenPriceMicros, &p.OutputTokenPriceMicros, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &p, nil
}

func (r *modelPricingRepo) GetByModelName(ctx context.Context, tx repository.Tx, name string) (*model.ModelPricing, error) {
	q := `SELECT ` + pricingColumns + ` FROM model_pricing WHERE model_name = $1 AND active = TRUE LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, name)
	if err != nil {
		return nil, err
	}
	return scanPricing(row)
}

// Save inserts a price or replaces the one stored for the same model name.
func (r *modelPricingRepo) Save(ctx context.Context, tx repository.Tx, p *model.ModelPricing) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	const q = `
INSERT INTO model_pricing (id, model_name, input_token_price_micros, output_token_price_micros, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (model_name) DO UPDATE SET
  input_token_price_micros  = EXCLUDED.input_token_price_micros,
  output_token_price_micros = EXCLUDED.output_token_price_micros,
  active                    = EXCLUDED.active,
  updated_at                = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.ModelName, p.InputTokenPriceMicros, p.OutputTokenPriceMicros, p.Active, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *modelPricingRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.ModelPricing, error) {
	q := `SELECT ` + pricingColumns + ` FROM model_pricing WHERE active = TRUE ORDER BY model_name ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ModelPricing
	for rows.Next() {
		p, err := scanPricing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, translate(rows.Err())
}
