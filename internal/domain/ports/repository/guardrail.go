package repository

import (
	"context"

	"reply-assistant/internal/domain/model"
)

type GuardrailConfigRepository interface {
	// Get returns domain.ErrNotFound when the tenant has no policy.
	Get(ctx context.Context, tx Tx, tenantID string) (*model.GuardrailConfig, error)
}

type ViolationRepository interface {
	SaveAll(ctx context.Context, tx Tx, records []model.ViolationRecord) error
}
