package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

// PricingUseCase manages the per-model token prices used for cost accounting.
type PricingUseCase interface {
	// List returns all active model pricing rows, ordered by name.
	List(ctx context.Context) ([]*model.ModelPricing, error)

	// Get returns the active pricing for a specific model name.
	Get(ctx context.Context, modelName string) (*model.ModelPricing, error)

	// Set creates the pricing row of modelName or replaces its prices, and activates it.
	Set(ctx context.Context, modelName string, inputMicros, outputMicros int64) (*model.ModelPricing, error)

	// Deactivate soft-deletes a model's pricing. Calls made afterwards record zero cost.
	Deactivate(ctx context.Context, modelName string) error
}

var _ PricingUseCase = (*pricingUC)(nil)

type pricingUC struct {
	prices repository.ModelPricingRepository
	log    *zerolog.Logger
}

// NewPricingUseCase constructs the use case using the model pricing repository.
func NewPricingUseCase(prices repository.ModelPricingRepository, logger *zerolog.Logger) PricingUseCase {
	return &pricingUC{prices: prices, log: logger}
}

func (p *pricingUC) List(ctx context.Context) ([]*model.ModelPricing, error) {
	return p.prices.ListActive(ctx, repository.NoTX)
}

func (p *pricingUC) Get(ctx context.Context, modelName string) (*model.ModelPricing, error) {
	return p.prices.GetByModelName(ctx, repository.NoTX, normalizeModelName(modelName))
}

func (p *pricingUC) Set(ctx context.Context, modelName string, inputMicros, outputMicros int64) (*model.ModelPricing, error) {
	mn := normalizeModelName(modelName)
	if mn == "" || inputMicros < 0 || outputMicros < 0 {
		return nil, domain.ErrInvalidArgument
	}
	rec, err := p.prices.GetByModelName(ctx, repository.NoTX, mn)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec = model.NewModelPricing(mn, inputMicros, outputMicros, true)
	case err != nil:
		return nil, err
	default:
		rec.InputTokenPriceMicros = inputMicros
		rec.OutputTokenPriceMicros = outputMicros
		rec.Active = true
		rec.UpdatedAt = time.Now()
	}
	if err := p.prices.Save(ctx, repository.NoTX, rec); err != nil {
		return nil, err
	}
	if p.log != nil {
		p.log.Info().Str("model", mn).Int64("input_micros", inputMicros).Int64("output_micros", outputMicros).Msg("model pricing set")
	}
	return rec, nil
}

// Deactivate returns domain.ErrNotFound when the model has no active pricing.
func (p *pricingUC) Deactivate(ctx context.Context, modelName string) error {
	rec, err := p.prices.GetByModelName(ctx, repository.NoTX, normalizeModelName(modelName))
	if err != nil {
		return err
	}
	rec.Active = false
	rec.UpdatedAt = time.Now()
	return p.prices.Save(ctx, repository.NoTX, rec)
}

func normalizeModelName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
