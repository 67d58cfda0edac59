package usecase

import (
	"context"
	"time"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

// EnrichmentPipeline tags the triggering message with topics and sentiment.
// It runs detached: failures are logged by the Detacher and never reach the job.
type EnrichmentPipeline struct {
	classifier *Classifier
	repo       repository.EnrichmentRepository
	detacher   *Detacher
}

func NewEnrichmentPipeline(classifier *Classifier, repo repository.EnrichmentRepository, detacher *Detacher) *EnrichmentPipeline {
	return &EnrichmentPipeline{classifier: classifier, repo: repo, detacher: detacher}
}

// Enrich schedules topic and sentiment persistence for job and returns at once.
func (e *EnrichmentPipeline) Enrich(ctx context.Context, job model.GenerationJob, suggestionID string, sentiment model.SentimentResult) {
	if job.TriggerText == "" {
		return
	}
	now := time.Now().UTC()

	e.detacher.Go(ctx, "enrich_topics", func(ctx context.Context) error {
		topics := e.classifier.Topics(job.TriggerText)
		if len(topics) == 0 {
			return nil
		}
		recs := make([]model.TopicRecord, 0, len(topics))
		for _, t := range topics {
			recs = append(recs, model.TopicRecord{
				TenantID:       job.TenantID,
				ConversationID: job.ConversationID,
				SuggestionID:   suggestionID,
				Topic:          t,
				CreatedAt:      now,
			})
		}
		return e.repo.SaveTopics(ctx, repository.NoTX, recs)
	})

	e.detacher.Go(ctx, "enrich_sentiment", func(ctx context.Context) error {
		return e.repo.SaveSentiment(ctx, repository.NoTX, &model.SentimentRecord{
			TenantID:       job.TenantID,
			ConversationID: job.ConversationID,
			SuggestionID:   suggestionID,
			Result:         sentiment,
			CreatedAt:      now,
		})
	})
}
