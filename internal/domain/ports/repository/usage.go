package repository

import (
	"context"

	"reply-assistant/internal/domain/model"
)

type UsageRepository interface {
	// Check returns the counter for period joined with the tenant plan. A user
	// without a row yet has Count 0. domain.ErrNotFound means the tenant has no plan.
	Check(ctx context.Context, tx Tx, tenantID, userID, period string) (*model.UsageRecord, error)
	// Increment atomically adds one and returns the new count.
	Increment(ctx context.Context, tx Tx, tenantID, userID, period string) (int64, error)
	MonthlySummary(ctx context.Context, tx Tx, tenantID, period string, top int) (*model.UsageSummary, error)
}
