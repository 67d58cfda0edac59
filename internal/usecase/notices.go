package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/infra/metrics"
)

// Messages resolves user-facing texts by key.
type Messages interface {
	T(key string, args ...any) string
}

const (
	msgNoticeBlocked = "notice.blocked"
	msgNoticeFailed  = "notice.failed"
	msgAutoPosted    = "notice.auto_posted"
	msgNote          = "suggestion.note"
	msgButtonCopy    = "button.copy"
	msgButtonRefine  = "button.refine"
	msgButtonDismiss = "button.dismiss"
	msgButtonUndo    = "button.undo"
)

// Notifier posts short user-only notices outside the delivery router. It
// performs no usage check of its own.
type Notifier struct {
	clients *ClientResolver
	msgs    Messages
	log     *zerolog.Logger
}

func NewNotifier(clients *ClientResolver, msgs Messages, logger *zerolog.Logger) *Notifier {
	return &Notifier{clients: clients, msgs: msgs, log: logger}
}

// NotifyDenied tells the user their usage limit stopped the generation.
func (n *Notifier) NotifyDenied(ctx context.Context, job model.GenerationJob, reason string) error {
	return n.post(ctx, job, "denied", reason)
}

// NotifyFailed tells the user a terminal error ended the generation.
func (n *Notifier) NotifyFailed(ctx context.Context, job model.GenerationJob, cause error) error {
	if errors.Is(cause, domain.ErrPolicyBlocked) {
		return n.post(ctx, job, "blocked", n.msgs.T(msgNoticeBlocked))
	}
	return n.post(ctx, job, "failed", n.msgs.T(msgNoticeFailed))
}

func (n *Notifier) post(ctx context.Context, job model.GenerationJob, kind, text string) error {
	client, err := n.clients.ClientFor(ctx, job.TenantID)
	if err == nil {
		err = client.PostEphemeral(ctx, job.ConversationID, job.UserID, adapter.Notice{Text: text})
	}
	result := "delivered"
	if err != nil {
		result = "failed"
		n.log.Warn().Err(err).Str("kind", kind).Str("tenant_id", job.TenantID).Msg("notice not delivered")
	}
	metrics.IncDelivery("notice_"+kind, result)
	return err
}
