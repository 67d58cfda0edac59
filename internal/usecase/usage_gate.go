package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/metrics"
)

// UsageGate decides whether a user may generate another suggestion this month.
type UsageGate interface {
	CheckUsageAllowed(ctx context.Context, tenantID, userID string) model.UsageDecision
	// Increment adds one successful generation to the user's counter.
	Increment(ctx context.Context, tenantID, userID string) error
}

var _ UsageGate = (*usageGate)(nil)

type usageGate struct {
	usage repository.UsageRepository
	log   *zerolog.Logger
	now   func() time.Time
}

func NewUsageGate(usage repository.UsageRepository, logger *zerolog.Logger) UsageGate {
	return &usageGate{usage: usage, log: logger, now: time.Now}
}

// CheckUsageAllowed fails open: a store error or a tenant without a plan allows the call.
func (g *usageGate) CheckUsageAllowed(ctx context.Context, tenantID, userID string) model.UsageDecision {
	rec, err := g.usage.Check(ctx, repository.NoTX, tenantID, userID, model.UsagePeriod(g.now()))
	if err != nil {
		ev := g.log.Warn().Err(err).Str("tenant_id", tenantID).Str("user_id", userID)
		if errors.Is(err, domain.ErrNotFound) {
			ev.Msg("usage: tenant has no plan, allowing")
		} else {
			ev.Msg("usage: check failed, allowing")
		}
		metrics.IncUsageDecision("fail_open")
		return model.UsageDecision{Allowed: true}
	}

	d := model.UsageDecision{Allowed: true, CurrentUsage: rec.Count, Limit: rec.Limit}
	switch {
	case rec.Limit <= 0 || rec.Count < rec.Limit:
		metrics.IncUsageDecision("allowed")
	case rec.AllowOverage:
		d.IsOverage = true
		metrics.IncUsageDecision("overage")
	default:
		d.Allowed = false
		d.Reason = fmt.Sprintf("Monthly suggestion limit reached (%d/%d). Your quota resets at the start of next month.", rec.Count, rec.Limit)
		metrics.IncUsageDecision("denied")
	}
	return d
}

func (g *usageGate) Increment(ctx context.Context, tenantID, userID string) error {
	_, err := g.usage.Increment(ctx, repository.NoTX, tenantID, userID, model.UsagePeriod(g.now()))
	return err
}
