package repository

import (
	"context"

	"reply-assistant/internal/domain/model"
)

type SuggestionRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.SuggestionRecord) error
}

type CostRepository interface {
	Record(ctx context.Context, tx Tx, e *model.CostEntry) error
}

type EnrichmentRepository interface {
	SaveTopics(ctx context.Context, tx Tx, topics []model.TopicRecord) error
	SaveSentiment(ctx context.Context, tx Tx, s *model.SentimentRecord) error
}
