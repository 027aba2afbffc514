package persistence

import (
	"context"
	"database/sql"
)

type txKey struct{}

// TxInfo holds the database transaction and ownership info. Owned is false
// when the transaction was started by an enclosing unit of work, so nested
// units neither commit nor roll back on behalf of their parent.
type TxInfo struct {
	Tx    *sql.Tx
	Owned bool
}

// WithTx stores transaction info in the context.
func WithTx(ctx context.Context, tx *sql.Tx, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, TxInfo{Tx: tx, Owned: owned})
}

// TxFromContext extracts transaction info from the context.
func TxFromContext(ctx context.Context) (TxInfo, bool) {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	if !ok || info.Tx == nil {
		return TxInfo{}, false
	}
	return info, true
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QuerierFromContext returns the context transaction when present, the given
// fallback connection otherwise.
func QuerierFromContext(ctx context.Context, db *sql.DB) Querier {
	if info, ok := TxFromContext(ctx); ok {
		return info.Tx
	}
	return db
}
