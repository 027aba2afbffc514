package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxTxKey struct{}

// PgxTxInfo holds the pgx transaction in context and whether it is owned by
// the caller.
type PgxTxInfo struct {
	Tx    pgx.Tx
	Owned bool
}

// WithPgxTx stores pgx transaction info in the context.
func WithPgxTx(ctx context.Context, tx pgx.Tx, owned bool) context.Context {
	return context.WithValue(ctx, pgxTxKey{}, PgxTxInfo{Tx: tx, Owned: owned})
}

// PgxTxFromContext extracts pgx transaction info from the context.
func PgxTxFromContext(ctx context.Context) (PgxTxInfo, bool) {
	info, ok := ctx.Value(pgxTxKey{}).(PgxTxInfo)
	if !ok || info.Tx == nil {
		return PgxTxInfo{}, false
	}
	return info, true
}

// DBExecutor abstracts pgxpool.Pool and pgx.Tx for shared query execution.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor returns a transaction executor when present, otherwise the pool.
func Executor(ctx context.Context, pool *pgxpool.Pool) DBExecutor {
	if info, ok := PgxTxFromContext(ctx); ok {
		return info.Tx
	}
	return pool
}
