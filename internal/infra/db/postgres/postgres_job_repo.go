package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, queue, payload, status, attempts, max_attempts, run_at, last_error, result, created_at, updated_at`

func scanJob(row interface{ Scan(dest ...interface{}) error }) (*model.Job, error) {
	var j model.Job
	var queue, status string
	var result []byte
	if err := row.Scan(&j.ID, &queue, &j.Payload, &status, &j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LastError, &result, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	j.Queue = model.QueueName(queue)
	j.Status = model.JobStatus(status)
	j.Result = result
	return &j, nil
}

func (r *jobRepo) Enqueue(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, queue, payload, status, attempts, max_attempts, run_at, last_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, string(job.Queue), []byte(job.Payload), string(job.Status), job.Attempts, job.MaxAttempts, job.RunAt, job.CreatedAt)
	return err
}

// Claim takes the oldest runnable job with SKIP LOCKED so concurrent workers
// never receive the same row.
func (r *jobRepo) Claim(ctx context.Context, queue model.QueueName) (*model.Job, error) {
	const q = `
UPDATE jobs SET status = 'processing', attempts = attempts + 1, updated_at = now()
 WHERE id = (
   SELECT id FROM jobs
    WHERE queue = $1 AND status = 'pending' AND run_at <= now()
    ORDER BY run_at, created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED)
RETURNING ` + jobColumns + `;`
	row, err := pickRow(ctx, r.pool, nil, q, string(queue))
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) Complete(ctx context.Context, id string, result []byte) error {
	const q = `UPDATE jobs SET status = 'completed', result = $2, last_error = '', updated_at = now() WHERE id = $1;`
	return r.expectOne(execSQL(ctx, r.pool, nil, q, id, result))
}

func (r *jobRepo) Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error {
	const q = `UPDATE jobs SET status = 'pending', run_at = $2, last_error = $3, updated_at = now() WHERE id = $1;`
	return r.expectOne(execSQL(ctx, r.pool, nil, q, id, runAt, lastErr))
}

func (r *jobRepo) Release(ctx context.Context, id string) error {
	const q = `
UPDATE jobs SET status = 'pending', attempts = GREATEST(attempts - 1, 0), updated_at = now()
 WHERE id = $1 AND status = 'processing';`
	return r.expectOne(execSQL(ctx, r.pool, nil, q, id))
}

func (r *jobRepo) Fail(ctx context.Context, id string, lastErr string) error {
	const q = `UPDATE jobs SET status = 'failed', last_error = $2, updated_at = now() WHERE id = $1;`
	return r.expectOne(execSQL(ctx, r.pool, nil, q, id, lastErr))
}

// RequeueStale fails stale jobs that already used their last attempt, so a job
// that kills its worker every run is not claimed forever, and requeues the rest.
func (r *jobRepo) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	const failExhausted = `
UPDATE jobs SET status = 'failed', last_error = 'lease expired on final attempt', updated_at = now()
 WHERE status = 'processing' AND attempts >= max_attempts
   AND updated_at < now() - make_interval(secs => $1);`
	const requeue = `
UPDATE jobs SET status = 'pending', last_error = 'lease expired', updated_at = now()
 WHERE status = 'processing' AND attempts < max_attempts
   AND updated_at < now() - make_interval(secs => $1);`
	if _, err := execSQL(ctx, r.pool, nil, failExhausted, olderThan.Seconds()); err != nil {
		return 0, err
	}
	tag, err := execSQL(ctx, r.pool, nil, requeue, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) expectOne(tag interface{ RowsAffected() int64 }, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
