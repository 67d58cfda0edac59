package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Repositories accept nil to run on the pool.
type Tx interface{}

// NoTX runs a repository call outside any transaction.
var NoTX Tx

// TransactionManager runs fn inside one database transaction and hands the
// handle to every repository call made with it. fn returning an error rolls back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
