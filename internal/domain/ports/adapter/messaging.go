package adapter

import "context"

type Button struct {
	Text string
	Data string
	URL  string
}

// Notice is a message shown only to one user.
type Notice struct {
	Text        string
	Buttons     [][]Button
	LowPriority bool
}

// MessagingClient posts to a messaging platform on behalf of one tenant.
type MessagingClient interface {
	// PostMessage posts a visible message, replying in threadID when set, and returns its id.
	PostMessage(ctx context.Context, conversationID, text, threadID string) (string, error)
	PostEphemeral(ctx context.Context, conversationID, userID string, notice Notice) error
}

// MessagingClientFactory builds clients from decrypted platform tokens.
type MessagingClientFactory interface {
	ForToken(ctx context.Context, token string) (MessagingClient, error)
}

// WebhookPoster delivers a JSON payload to an external URL.
type WebhookPoster interface {
	Post(ctx context.Context, url string, payload any) error
}
