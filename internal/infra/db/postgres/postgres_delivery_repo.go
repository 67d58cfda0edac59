package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

var (
	_ repository.CredentialRepository  = (*deliveryRepo)(nil)
	_ repository.AutoRespondRepository = (*deliveryRepo)(nil)
)

type deliveryRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveryRepo(pool *pgxpool.Pool) *deliveryRepo {
	return &deliveryRepo{pool: pool}
}

func (r *deliveryRepo) Resolve(ctx context.Context, tx repository.Tx, tenantID string) (*model.DeliveryCredential, error) {
	const q = `SELECT encrypted_token FROM delivery_credentials WHERE tenant_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return nil, err
	}
	c := model.DeliveryCredential{TenantID: tenantID}
	if err := row.Scan(&c.EncryptedToken); err != nil {
		return nil, scanErr(err)
	}
	return &c, nil
}

func (r *deliveryRepo) Save(ctx context.Context, tx repository.Tx, cred *model.DeliveryCredential) error {
	const q = `
INSERT INTO delivery_credentials (tenant_id, encrypted_token, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (tenant_id) DO UPDATE SET encrypted_token = EXCLUDED.encrypted_token, updated_at = now();`
	_, err := execSQL(ctx, r.pool, tx, q, cred.TenantID, cred.EncryptedToken)
	return err
}

// IsEnabled prefers a conversation-specific preference over the user's default row.
func (r *deliveryRepo) IsEnabled(ctx context.Context, tx repository.Tx, tenantID, userID, conversationID string) (bool, error) {
	const q = `
SELECT COALESCE((
  SELECT enabled FROM auto_respond_prefs
   WHERE tenant_id = $1 AND user_id = $2 AND conversation_id IN ($3, '')
   ORDER BY conversation_id DESC
   LIMIT 1), FALSE);`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, userID, conversationID)
	if err != nil {
		return false, err
	}
	var enabled bool
	if err := row.Scan(&enabled); err != nil {
		return false, scanErr(err)
	}
	return enabled, nil
}

func (r *deliveryRepo) LogAutoResponse(ctx context.Context, tx repository.Tx, e *model.AutoResponseEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO auto_response_log (id, tenant_id, user_id, conversation_id, message_id, suggestion_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.TenantID, e.UserID, e.ConversationID, e.MessageID, e.SuggestionID, e.CreatedAt)
	return err
}
