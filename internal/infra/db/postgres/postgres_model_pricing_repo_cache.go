package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/metrics"
	red "reply-assistant/internal/infra/redis"
)

var _ repository.ModelPricingRepository = (*modelPricingRepoCacheDecorator)(nil)

const pricingListKey = "model_pricing:all_active"

type modelPricingRepoCacheDecorator struct {
	inner repository.ModelPricingRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewModelPricingRepoCacheDecorator(inner repository.ModelPricingRepository, cache red.RedisClient, logger *zerolog.Logger) repository.ModelPricingRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &modelPricingRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   time.Hour,
		log:   logger,
	}
}

func pricingKey(name string) string { return fmt.Sprintf("model_pricing:%s", name) }

func (d *modelPricingRepoCacheDecorator) GetByModelName(ctx context.Context, tx repository.Tx, modelName string) (*model.ModelPricing, error) {
	key := pricingKey(modelName)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.ModelPricing
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("model_pricing", "hit")
			return &p, nil
		}
	} else if !red.IsNil(err) {
		d.log.Warn().Err(err).Str("key", key).Msg("pricing cache read failed")
	}

	metrics.IncCacheRequest("model_pricing", "miss")
	p, err := d.inner.GetByModelName(ctx, tx, modelName)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

// Save invalidates the item and list keys.
func (d *modelPricingRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.ModelPricing) error {
	_ = d.cache.Del(ctx, pricingKey(p.ModelName), pricingListKey)
	return d.inner.Save(ctx, tx, p)
}

func (d *modelPricingRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.ModelPricing, error) {
	val, err := d.cache.Get(ctx, pricingListKey)
	if err == nil {
		var prices []*model.ModelPricing
		if json.Unmarshal([]byte(val), &prices) == nil {
			metrics.IncCacheRequest("model_pricing_list", "hit")
			return prices, nil
		}
	}

	metrics.IncCacheRequest("model_pricing_list", "miss")
	prices, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(prices) > 0 {
		if b, err := json.Marshal(prices); err == nil {
			_ = d.cache.Set(ctx, pricingListKey, b, d.ttl)
		}
	}
	return prices, nil
}
