package repository

import (
	"context"

	"reply-assistant/internal/domain/model"
)

type ModelPricingRepository interface {
	// Get active pricing for a model
	GetByModelName(ctx context.Context, tx Tx, model string) (*model.ModelPricing, error)
	// Upsert operator changes
	Save(ctx context.Context, tx Tx, p *model.ModelPricing) error
	ListActive(ctx context.Context, tx Tx) ([]*model.ModelPricing, error)
}
