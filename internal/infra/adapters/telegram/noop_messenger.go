package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"reply-assistant/internal/domain/ports/adapter"
)

var (
	_ adapter.MessagingClient        = (*NoopMessenger)(nil)
	_ adapter.MessagingClientFactory = (*NoopMessenger)(nil)
)

// NoopMessenger logs messages instead of sending them. Used in dev mode.
type NoopMessenger struct {
	log *zerolog.Logger
}

func NewNoopMessenger(logger *zerolog.Logger) *NoopMessenger {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NoopMessenger{log: logger}
}

func (n *NoopMessenger) ForToken(ctx context.Context, token string) (adapter.MessagingClient, error) {
	return n, nil
}

func (n *NoopMessenger) PostMessage(ctx context.Context, conversationID, text, threadID string) (string, error) {
	n.log.Info().Str("conversation_id", conversationID).Str("thread_id", threadID).Str("text", text).Msg("[noop-messenger] post")
	return "noop", nil
}

func (n *NoopMessenger) PostEphemeral(ctx context.Context, conversationID, userID string, notice adapter.Notice) error {
	n.log.Info().Str("conversation_id", conversationID).Str("user_id", userID).
		Str("text", notice.Text).Int("button_rows", len(notice.Buttons)).Msg("[noop-messenger] notice")
	return nil
}
