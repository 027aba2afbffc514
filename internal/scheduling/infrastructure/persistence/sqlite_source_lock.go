package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

// SQLiteSourceLock implements domain.SourceLock on the transaction_locks
// table. The primary key on source makes acquisition atomic: the first insert
// wins, later ones hit the existing row.
type SQLiteSourceLock struct {
	dbConn *sql.DB
}

// NewSQLiteSourceLock creates a new SQLite source lock.
func NewSQLiteSourceLock(dbConn *sql.DB) *SQLiteSourceLock {
	return &SQLiteSourceLock{dbConn: dbConn}
}

// Acquire takes the lock for source on behalf of the transaction. Re-acquiring
// a lock already held by the same transaction succeeds.
func (l *SQLiteSourceLock) Acquire(ctx context.Context, source, transactionID string) error {
	querier := sharedPersistence.QuerierFromContext(ctx, l.dbConn)

	result, err := querier.ExecContext(ctx, `
		INSERT INTO transaction_locks (source, transaction_id, acquired_at)
		VALUES (?, ?, ?)
		ON CONFLICT (source) DO NOTHING`,
		source, transactionID, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var holder string
	err = querier.QueryRowContext(ctx,
		`SELECT transaction_id FROM transaction_locks WHERE source = ?`, source).Scan(&holder)
	if errors.Is(err, sql.ErrNoRows) {
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
func (l *SQLiteSourceLock) Release(ctx context.Context, source, transactionID string) error {
	querier := sharedPersistence.QuerierFromContext(ctx, l.dbConn)
	_, err := querier.ExecContext(ctx,
		`DELETE FROM transaction_locks WHERE source = ? AND transaction_id = ?`,
		source, transactionID)
	return err
}
