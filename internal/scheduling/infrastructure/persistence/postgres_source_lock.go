package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

// PostgresSourceLock implements domain.SourceLock on the transaction_locks
// table. The primary key on source makes acquisition atomic: the first insert
// wins, later ones hit the existing row.
type PostgresSourceLock struct {
	pool *pgxpool.Pool
}

// NewPostgresSourceLock creates a new PostgreSQL source lock.
func NewPostgresSourceLock(pool *pgxpool.Pool) *PostgresSourceLock {
	return &PostgresSourceLock{pool: pool}
}

// Acquire takes the lock for source on behalf of the transaction. Re-acquiring
// a lock already held by the same transaction succeeds.
func (l *PostgresSourceLock) Acquire(ctx context.Context, source, transactionID string) error {
	executor := sharedPersistence.Executor(ctx, l.pool)

	tag, err := executor.Exec(ctx, `
		INSERT INTO transaction_locks (source, transaction_id, acquired_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (source) DO NOTHING`,
		source, transactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var holder string
	err = executor.QueryRow(ctx,
		`SELECT transaction_id FROM transaction_locks WHERE source = $1`, source).Scan(&holder)
	if errors.Is(err, pgx.ErrNoRows) {
		// Holder released between insert and read; retry once.
		return l.Acquire(ctx, source, transactionID)
	}
	if err != nil {
		return err
	}
	if holder == transactionID {
		return nil
	}
	return fmt.Errorf("%w: source %s locked by transaction %s",
		domain.ErrTransactionConflict, source, holder)
}

// Release frees the lock for source if the transaction still holds it.
// Releasing an unheld lock is not an error.
func (l *PostgresSourceLock) Release(ctx context.Context, source, transactionID string) error {
	executor := sharedPersistence.Executor(ctx, l.pool)
	_, err := executor.Exec(ctx,
		`DELETE FROM transaction_locks WHERE source = $1 AND transaction_id = $2`,
		source, transactionID)
	return err
}
