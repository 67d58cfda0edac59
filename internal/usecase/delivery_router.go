package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/logging"
	"reply-assistant/internal/infra/metrics"
)

// Decrypter opens a tenant's stored platform token.
type Decrypter interface {
	Decrypt(tenantID, ciphertext string) (string, error)
}

// ClientResolver builds a messaging client from a tenant's stored credential.
type ClientResolver struct {
	creds   repository.CredentialRepository
	dec     Decrypter
	factory adapter.MessagingClientFactory
}

func NewClientResolver(creds repository.CredentialRepository, dec Decrypter, factory adapter.MessagingClientFactory) *ClientResolver {
	return &ClientResolver{creds: creds, dec: dec, factory: factory}
}

func (r *ClientResolver) ClientFor(ctx context.Context, tenantID string) (adapter.MessagingClient, error) {
	cred, err := r.creds.Resolve(ctx, repository.NoTX, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoCredential
		}
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	token, err := r.dec.Decrypt(tenantID, cred.EncryptedToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}
	return r.factory.ForToken(ctx, token)
}

// RouteRequest is one finished suggestion waiting for delivery. JobID keys
// the at-most-once guard; an empty JobID skips the guard.
type RouteRequest struct {
	JobID      string
	Job        model.GenerationJob
	Suggestion *model.Suggestion
}

// DeliveryRouter picks exactly one delivery mode for a suggestion and makes a
// single attempt. It never returns an error: failures are reported in the result.
type DeliveryRouter struct {
	guard    repository.DeliveryGuard
	prefs    repository.AutoRespondRepository
	clients  *ClientResolver
	webhooks adapter.WebhookPoster
	msgs     Messages
	log      *zerolog.Logger
}

func NewDeliveryRouter(guard repository.DeliveryGuard, prefs repository.AutoRespondRepository, clients *ClientResolver, webhooks adapter.WebhookPoster, msgs Messages, logger *zerolog.Logger) *DeliveryRouter {
	return &DeliveryRouter{guard: guard, prefs: prefs, clients: clients, webhooks: webhooks, msgs: msgs, log: logger}
}

func (r *DeliveryRouter) Route(ctx context.Context, req RouteRequest) (res model.DeliveryResult) {
	log := logging.With(ctx, r.log)
	res.Mode = model.DeliveryNone
	defer func() {
		if p := recover(); p != nil {
			res.Delivered = false
			res.Err = fmt.Errorf("delivery panic: %v", p)
		}
		result := "delivered"
		switch {
		case errors.Is(res.Err, domain.ErrAlreadyDelivered):
			result = "duplicate"
		case res.Err != nil:
			result = "failed"
			log.Warn().Err(res.Err).Str("mode", string(res.Mode)).Str("job_id", req.JobID).Msg("delivery failed")
		}
		metrics.IncDelivery(string(res.Mode), result)
	}()

	if req.Suggestion == nil || req.Suggestion.Text == "" {
		res.Err = errors.New("nothing to deliver")
		return res
	}
	if req.JobID != "" && r.guard != nil {
		ok, err := r.guard.Claim(ctx, req.JobID)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("delivery guard unavailable, delivering anyway")
		case !ok:
			res.Err = domain.ErrAlreadyDelivered
			return res
		}
	}

	job, s := req.Job, req.Suggestion
	if r.autoRespond(ctx, job) {
		res.Mode = model.DeliveryAutoRespond
		res.MessageID, res.Err = r.postOnBehalf(ctx, job, s)
		res.Delivered = res.Err == nil
		return res
	}
	if job.CallbackURL != "" && job.DirectContext {
		res.Mode = model.DeliveryWebhook
		res.Err = r.webhooks.Post(ctx, job.CallbackURL, model.WebhookPayload{
			ResponseType:   "ephemeral",
			SuggestionID:   s.ID,
			ConversationID: job.ConversationID,
			UserID:         job.UserID,
			Text:           s.Text,
			Warnings:       s.Warnings,
		})
		res.Delivered = res.Err == nil
		return res
	}

	res.Mode = model.DeliveryEphemeral
	res.Err = r.postNotice(ctx, job, s)
	res.Delivered = res.Err == nil
	return res
}

func (r *DeliveryRouter) autoRespond(ctx context.Context, job model.GenerationJob) bool {
	if r.prefs == nil {
		return false
	}
	on, err := r.prefs.IsEnabled(ctx, repository.NoTX, job.TenantID, job.UserID, job.ConversationID)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("auto-respond preference unavailable, using notice")
		return false
	}
	return on
}

func (r *DeliveryRouter) postOnBehalf(ctx context.Context, job model.GenerationJob, s *model.Suggestion) (string, error) {
	client, err := r.clients.ClientFor(ctx, job.TenantID)
	if err != nil {
		return "", err
	}
	msgID, err := client.PostMessage(ctx, job.ConversationID, s.Text, job.ThreadID)
	if err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}

	log := logging.With(ctx, r.log)
	entry := &model.AutoResponseEntry{
		ID:             uuid.NewString(),
		TenantID:       job.TenantID,
		UserID:         job.UserID,
		ConversationID: job.ConversationID,
		MessageID:      msgID,
		SuggestionID:   s.ID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.prefs.LogAutoResponse(ctx, repository.NoTX, entry); err != nil {
		log.Warn().Err(err).Str("message_id", msgID).Msg("auto-response log failed")
	}

	undo := adapter.Notice{
		Text:        r.msgs.T(msgAutoPosted),
		LowPriority: true,
		Buttons:     [][]adapter.Button{{{Text: r.msgs.T(msgButtonUndo), Data: "undo:" + entry.ID + ":" + msgID}}},
	}
	if err := client.PostEphemeral(ctx, job.ConversationID, job.UserID, undo); err != nil {
		log.Warn().Err(err).Str("message_id", msgID).Msg("undo notice failed")
	}
	return msgID, nil
}

func (r *DeliveryRouter) postNotice(ctx context.Context, job model.GenerationJob, s *model.Suggestion) error {
	client, err := r.clients.ClientFor(ctx, job.TenantID)
	if err != nil {
		return err
	}
	return client.PostEphemeral(ctx, job.ConversationID, job.UserID, r.suggestionNotice(s))
}

func (r *DeliveryRouter) suggestionNotice(s *model.Suggestion) adapter.Notice {
	text := s.Text
	if len(s.Warnings) > 0 {
		notes := make([]string, len(s.Warnings))
		for i, w := range s.Warnings {
			notes[i] = r.msgs.T(msgNote, w)
		}
		text += "\n\n" + strings.Join(notes, "\n")
	}
	return adapter.Notice{
		Text: text,
		Buttons: [][]adapter.Button{{
			{Text: r.msgs.T(msgButtonCopy), Data: "copy:" + s.ID},
			{Text: r.msgs.T(msgButtonRefine), Data: "refine:" + s.ID},
			{Text: r.msgs.T(msgButtonDismiss), Data: "dismiss:" + s.ID},
		}},
	}
}
