package repository

import (
	"context"

	"reply-assistant/internal/domain/model"
)

type CredentialRepository interface {
	// Resolve returns domain.ErrNotFound when the tenant has no token.
	Resolve(ctx context.Context, tx Tx, tenantID string) (*model.DeliveryCredential, error)
	Save(ctx context.Context, tx Tx, cred *model.DeliveryCredential) error
}

type AutoRespondRepository interface {
	IsEnabled(ctx context.Context, tx Tx, tenantID, userID, conversationID string) (bool, error)
	LogAutoResponse(ctx context.Context, tx Tx, entry *model.AutoResponseEntry) error
}

// DeliveryGuard grants a key once.
type DeliveryGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
}
