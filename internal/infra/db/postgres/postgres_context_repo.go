package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

var (
	_ repository.StyleRepository        = (*contextRepo)(nil)
	_ repository.NotesRepository        = (*contextRepo)(nil)
	_ repository.OrganizationRepository = (*contextRepo)(nil)
)

// contextRepo serves the read side of the prompt context layers.
type contextRepo struct {
	pool *pgxpool.Pool
}

func NewContextRepo(pool *pgxpool.Pool) *contextRepo {
	return &contextRepo{pool: pool}
}

func (r *contextRepo) Get(ctx context.Context, tx repository.Tx, tenantID, userID string) (*model.StyleProfile, error) {
	const q = `
SELECT summary, examples, sample_count, updated_at
  FROM style_profiles
 WHERE tenant_id = $1 AND user_id = $2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, userID)
	if err != nil {
		return nil, err
	}
	p := model.StyleProfile{TenantID: tenantID, UserID: userID}
	if err := row.Scan(&p.Summary, &p.Examples, &p.SampleCount, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &p, nil
}

func (r *contextRepo) ConversationNotes(ctx context.Context, tx repository.Tx, tenantID, userID, conversationID string, limit int) ([]model.Note, error) {
	const q = `
SELECT conversation_id, body, created_at
  FROM conversation_notes
 WHERE tenant_id = $1 AND user_id = $2 AND conversation_id = $3
 ORDER BY created_at DESC
 LIMIT $4;`
	return r.notes(ctx, tx, q, tenantID, userID, conversationID, limit)
}

func (r *contextRepo) PersonNotes(ctx context.Context, tx repository.Tx, tenantID, userID string, personIDs []string, limit int) ([]model.Note, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	const q = `
SELECT person_id, body, created_at
  FROM person_notes
 WHERE tenant_id = $1 AND user_id = $2 AND person_id = ANY($3)
 ORDER BY created_at DESC
 LIMIT $4;`
	return r.notes(ctx, tx, q, tenantID, userID, personIDs, limit)
}

func (r *contextRepo) notes(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]model.Note, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.Subject, &n.Body, &n.CreatedAt); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, n)
	}
	return out, translate(rows.Err())
}

func (r *contextRepo) OrganizationFor(ctx context.Context, tx repository.Tx, tenantID string) (string, error) {
	const q = `SELECT organization_id FROM tenants WHERE id = $1 AND organization_id IS NOT NULL;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return "", err
	}
	var org string
	if err := row.Scan(&org); err != nil {
		return "", scanErr(err)
	}
	return org, nil
}

func (r *contextRepo) StyleGuide(ctx context.Context, tx repository.Tx, orgID string) (string, error) {
	const q = `SELECT style_guide FROM organizations WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, orgID)
	if err != nil {
		return "", err
	}
	var guide string
	if err := row.Scan(&guide); err != nil {
		return "", scanErr(err)
	}
	return guide, nil
}

// MatchTemplates ranks active templates by trigram similarity to text.
func (r *contextRepo) MatchTemplates(ctx context.Context, tx repository.Tx, orgID, text string, limit int) ([]model.ResponseTemplate, error) {
	const q = `
SELECT id, title, body, similarity(body, $2) AS score
  FROM response_templates
 WHERE org_id = $1 AND active AND body % $2
 ORDER BY score DESC
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, orgID, text, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ResponseTemplate
	for rows.Next() {
		var t model.ResponseTemplate
		var score float32
		if err := rows.Scan(&t.ID, &t.Title, &t.Body, &score); err != nil {
			return nil, scanErr(err)
		}
		t.Score = float64(score)
		out = append(out, t)
	}
	return out, translate(rows.Err())
}

func (r *contextRepo) ClientFor(ctx context.Context, tx repository.Tx, orgID, conversationID string) (*model.ClientProfile, error) {
	const q = `
SELECT name, company, tier, relationship, notes
  FROM client_profiles
 WHERE org_id = $1 AND conversation_id = $2;`
	row, err := pickRow(ctx, r.pool, tx, q, orgID, conversationID)
	if err != nil {
		return nil, err
	}
	var c model.ClientProfile
	if err := row.Scan(&c.Name, &c.Company, &c.Tier, &c.Relationship, &c.Notes); err != nil {
		return nil, scanErr(err)
	}
	return &c, nil
}
