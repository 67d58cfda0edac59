package adapter

import (
	"context"
	"time"

	"reply-assistant/internal/domain/model"
)

// KnowledgeBaseSearch finds knowledge-base excerpts similar to a query.
type KnowledgeBaseSearch interface {
	Query(ctx context.Context, tenantID, text string, limit int, timeout time.Duration) ([]model.KnowledgeExcerpt, error)
}
