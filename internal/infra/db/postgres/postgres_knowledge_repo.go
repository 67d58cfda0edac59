package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/adapter"
	"reply-assistant/internal/domain/ports/repository"
)

var (
	_ adapter.KnowledgeBaseSearch         = (*knowledgeRepo)(nil)
	_ repository.KnowledgeIndexRepository = (*knowledgeRepo)(nil)
)

// knowledgeRepo stores document chunks and ranks them with pg_trgm.
type knowledgeRepo struct {
	pool      *pgxpool.Pool
	threshold float64
}

// NewKnowledgeRepo drops hits scoring below threshold (0..1).
func NewKnowledgeRepo(pool *pgxpool.Pool, threshold float64) *knowledgeRepo {
	return &knowledgeRepo{pool: pool, threshold: threshold}
}

func (r *knowledgeRepo) Query(ctx context.Context, tenantID, text string, limit int, timeout time.Duration) ([]model.KnowledgeExcerpt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	const q = `
SELECT document_id, title, body, similarity(body, $2) AS score
  FROM kb_chunks
 WHERE tenant_id = $1 AND similarity(body, $2) >= $3
 ORDER BY score DESC
 LIMIT $4;`
	rows, err := queryRows(ctx, r.pool, nil, q, tenantID, text, r.threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.KnowledgeExcerpt
	for rows.Next() {
		var e model.KnowledgeExcerpt
		var score float32
		if err := rows.Scan(&e.DocumentID, &e.Title, &e.Text, &score); err != nil {
			return nil, scanErr(err)
		}
		e.Score = float64(score)
		out = append(out, e)
	}
	return out, translate(rows.Err())
}

// ReplaceChunks deletes and rewrites a document's chunks in one batch, which
// pgx runs as a single implicit transaction when tx is nil.
func (r *knowledgeRepo) ReplaceChunks(ctx context.Context, tx repository.Tx, tenantID, documentID, title string, chunks []string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM kb_chunks WHERE tenant_id = $1 AND document_id = $2;`, tenantID, documentID)
	const ins = `
INSERT INTO kb_chunks (id, tenant_id, document_id, title, chunk_index, body)
VALUES ($1, $2, $3, $4, $5, $6);`
	for i, c := range chunks {
		batch.Queue(ins, uuid.NewString(), tenantID, documentID, title, i, c)
	}
	return sendBatch(ctx, ex, batch)
}
