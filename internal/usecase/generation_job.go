package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/infra/logging"
)

// SuggestionStore keeps delivered suggestions around for later refinement.
type SuggestionStore interface {
	Store(ctx context.Context, job model.GenerationJob, s *model.Suggestion) error
}

// GenerationJobHandler runs one generation job end to end: generate, notify
// on denial or terminal failure, otherwise deliver. Delivery problems never
// fail the job.
type GenerationJobHandler struct {
	gen      *Generator
	router   *DeliveryRouter
	notifier *Notifier
	store    SuggestionStore
	log      *zerolog.Logger
}

func NewGenerationJobHandler(gen *Generator, router *DeliveryRouter, notifier *Notifier, store SuggestionStore, logger *zerolog.Logger) *GenerationJobHandler {
	return &GenerationJobHandler{gen: gen, router: router, notifier: notifier, store: store, log: logger}
}

// Handle reports policy blocks and unusable output as terminal domain errors,
// which the pool does not retry. A usage denial completes the job.
func (h *GenerationJobHandler) Handle(ctx context.Context, jobID string, job model.GenerationJob) (model.JobOutcome, error) {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, h.log)

	s, err := h.gen.Generate(ctx, job)
	out := model.JobOutcome{SuggestionID: s.ID, ProcessingTime: s.ProcessingTime}
	if err != nil {
		if domain.IsTerminal(err) && h.notifier != nil {
			if nerr := h.notifier.NotifyFailed(ctx, job, err); nerr != nil {
				log.Debug().Err(nerr).Msg("failure notice skipped")
			}
		}
		return out, err
	}

	if s.Denied() {
		out.DenialReason = s.DenialReason
		if h.notifier != nil {
			if nerr := h.notifier.NotifyDenied(ctx, job, s.DenialReason); nerr != nil {
				log.Debug().Err(nerr).Msg("denial notice skipped")
			}
		}
		return out, nil
	}

	out.Text = s.Text
	if h.store != nil {
		if err := h.store.Store(ctx, job, s); err != nil {
			log.Warn().Err(err).Str("suggestion_id", s.ID).Msg("suggestion cache write failed")
		}
	}

	res := h.router.Route(ctx, RouteRequest{JobID: jobID, Job: job, Suggestion: s})
	out.Delivered = res.Delivered
	out.DeliveryMode = res.Mode
	return out, nil
}
