package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/ports/repository"
)

// execSQL runs q on tx when given one, otherwise on the pool.
func execSQL(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgconn.CommandTag, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	tag, err := ex.Exec(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	return tag, nil
}

// pickRow returns a single row; scan errors surface on row.Scan.
func pickRow(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgx.Row, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryRow(ctx, q, args...), nil
}

func queryRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, q string, args ...interface{}) (pgx.Rows, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

// sendBatch executes every queued statement of b.
func sendBatch(ctx context.Context, ex executor, b *pgx.Batch) error {
	br := ex.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return translate(err)
		}
	}
	return translate(br.Close())
}

// scanErr maps a Scan error to the domain.
func scanErr(err error) error {
	if err == pgx.ErrNoRows {
		return domain.ErrNotFound
	}
	if pgconn.Timeout(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if pgconn.Timeout(err) {
		return err
	}
	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
}
