package repository

import (
	"context"

	"reply-assistant/internal/domain/model"
)

type StyleRepository interface {
	Get(ctx context.Context, tx Tx, tenantID, userID string) (*model.StyleProfile, error)
}

type NotesRepository interface {
	ConversationNotes(ctx context.Context, tx Tx, tenantID, userID, conversationID string, limit int) ([]model.Note, error)
	PersonNotes(ctx context.Context, tx Tx, tenantID, userID string, personIDs []string, limit int) ([]model.Note, error)
}

type OrganizationRepository interface {
	// OrganizationFor returns domain.ErrNotFound when the tenant belongs to no organization.
	OrganizationFor(ctx context.Context, tx Tx, tenantID string) (string, error)
	StyleGuide(ctx context.Context, tx Tx, orgID string) (string, error)
	MatchTemplates(ctx context.Context, tx Tx, orgID, text string, limit int) ([]model.ResponseTemplate, error)
	ClientFor(ctx context.Context, tx Tx, orgID, conversationID string) (*model.ClientProfile, error)
}
