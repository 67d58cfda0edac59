package postgres

import (
	"context"
	"encoding/json"
	"time"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/metrics"
	red "reply-assistant/internal/infra/redis"
)

var _ repository.GuardrailConfigRepository = (*guardrailRepoCacheDecorator)(nil)

// guardrailRepoCacheDecorator keeps tenant policies in redis for a short ttl.
// A tenant without a policy is not cached so a newly created one applies at once.
type guardrailRepoCacheDecorator struct {
	inner repository.GuardrailConfigRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewGuardrailRepoCacheDecorator(inner repository.GuardrailConfigRepository, cache red.RedisClient, ttl time.Duration) repository.GuardrailConfigRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &guardrailRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *guardrailRepoCacheDecorator) Get(ctx context.Context, tx repository.Tx, tenantID string) (*model.GuardrailConfig, error) {
	key := "guardrail:" + tenantID
	if val, err := d.cache.Get(ctx, key); err == nil {
		var cfg model.GuardrailConfig
		if json.Unmarshal([]byte(val), &cfg) == nil {
			metrics.IncCacheRequest("guardrail", "hit")
			return &cfg, nil
		}
	}

	metrics.IncCacheRequest("guardrail", "miss")
	cfg, err := d.inner.Get(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(cfg); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return cfg, nil
}
