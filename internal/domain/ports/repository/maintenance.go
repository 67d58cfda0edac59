package repository

import (
	"context"
	"time"

	"reply-assistant/internal/domain/model"
)

type KnowledgeIndexRepository interface {
	// ReplaceChunks swaps the stored chunks of a document.
	ReplaceChunks(ctx context.Context, tx Tx, tenantID, documentID, title string, chunks []string) error
}

type EscalationRepository interface {
	SaveAll(ctx context.Context, tx Tx, items []model.Escalation) error
}

type RetentionRepository interface {
	// Purge deletes audit and enrichment rows created before cutoff.
	Purge(ctx context.Context, tx Tx, cutoff time.Time) (int64, error)
}

type TrendRepository interface {
	// RollupDay recomputes the topic trend rows of day.
	RollupDay(ctx context.Context, tx Tx, day time.Time) (int64, error)
}
