package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

// PostgresTransactionRepository implements domain.TransactionRepository using
// PostgreSQL. The transaction row and its staged events are written together,
// so Save is expected to run inside a unit of work.
type PostgresTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTransactionRepository creates a new PostgreSQL transaction repository.
func NewPostgresTransactionRepository(pool *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{pool: pool}
}

// Save upserts the transaction and replaces its staged events.
func (r *PostgresTransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	executor := sharedPersistence.Executor(ctx, r.pool)

	_, err := executor.Exec(ctx, `
		INSERT INTO scheduler_transactions (id, source, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		tx.ID(), tx.Source(), string(tx.State()), tx.CreatedAt(), tx.UpdatedAt())
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", tx.ID(), err)
	}

	if _, err := executor.Exec(ctx,
		`DELETE FROM pending_events WHERE transaction_id = $1`, tx.ID()); err != nil {
		return err
	}

	for position, event := range tx.Pending() {
		_, err = executor.Exec(ctx, `
			INSERT INTO pending_events (id, transaction_id, agent_id, start_time, end_time,
				presenters, media_package, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			event.ID(), tx.ID(), event.AgentID(),
			event.Period().Start(), event.Period().End(),
			event.Presenters(), event.MediaPackage(), position)
		if err != nil {
			return fmt.Errorf("save pending event %s: %w", event.ID(), err)
		}
	}

	return nil
}

// FindByID retrieves a transaction with its staged events.
func (r *PostgresTransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	executor := sharedPersistence.Executor(ctx, r.pool)
	row := executor.QueryRow(ctx,
		`SELECT id, source, state, created_at, updated_at
		 FROM scheduler_transactions WHERE id = $1`, id)

	tx, err := r.scanTransaction(ctx, executor, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, sharedDomain.ErrNotFound)
	}
	return tx, err
}

// FindOpenBySource retrieves the open transaction for a source, if any.
func (r *PostgresTransactionRepository) FindOpenBySource(ctx context.Context, source string) (*domain.Transaction, error) {
	executor := sharedPersistence.Executor(ctx, r.pool)
	row := executor.QueryRow(ctx,
		`SELECT id, source, state, created_at, updated_at
		 FROM scheduler_transactions WHERE source = $1 AND state = $2 LIMIT 1`,
		source, string(domain.TransactionOpen))

	tx, err := r.scanTransaction(ctx, executor, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("open transaction for source %s: %w", source, sharedDomain.ErrNotFound)
	}
	return tx, err
}

// ListOpenOlderThan returns open transactions last modified before the cutoff.
func (r *PostgresTransactionRepository) ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Transaction, error) {
	executor := sharedPersistence.Executor(ctx, r.pool)
	rows, err := executor.Query(ctx,
		`SELECT id, source, state, created_at, updated_at
		 FROM scheduler_transactions
		 WHERE state = $1 AND updated_at < $2
		 ORDER BY updated_at`,
		string(domain.TransactionOpen), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []*domain.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(ctx, executor, rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, tx)
	}
	return stale, rows.Err()
}

func (r *PostgresTransactionRepository) scanTransaction(ctx context.Context, executor sharedPersistence.DBExecutor, row pgx.Row) (*domain.Transaction, error) {
	var (
		id, source, state    string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &source, &state, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	pending, err := r.loadPending(ctx, executor, id, source, createdAt, updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateTransaction(id, source, domain.TransactionState(state),
		pending, createdAt.UTC(), updatedAt.UTC()), nil
}

func (r *PostgresTransactionRepository) loadPending(ctx context.Context, executor sharedPersistence.DBExecutor, transactionID, source string, createdAt, updatedAt time.Time) ([]*domain.ScheduledEvent, error) {
	rows, err := executor.Query(ctx, `
		SELECT id, agent_id, start_time, end_time, presenters, media_package
		FROM pending_events WHERE transaction_id = $1 ORDER BY position`,
		transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*domain.ScheduledEvent
	for rows.Next() {
		var (
			id, agentID, mediaPackage string
			start, end                time.Time
			presenters                []string
		)
		if err := rows.Scan(&id, &agentID, &start, &end, &presenters, &mediaPackage); err != nil {
			return nil, err
		}

		period, err := domain.NewPeriod(start, end)
		if err != nil {
			return nil, err
		}

		pending = append(pending, domain.RehydrateScheduledEvent(id, agentID, period,
			presenters, mediaPackage, source, domain.StatusScheduled, false,
			createdAt.UTC(), updatedAt.UTC()))
	}
	return pending, rows.Err()
}
