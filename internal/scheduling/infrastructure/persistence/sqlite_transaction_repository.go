package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

// SQLiteTransactionRepository implements domain.TransactionRepository using
// SQLite. The transaction row and its staged events are written together, so
// Save is expected to run inside a unit of work.
type SQLiteTransactionRepository struct {
	dbConn *sql.DB
}

// NewSQLiteTransactionRepository creates a new SQLite transaction repository.
func NewSQLiteTransactionRepository(dbConn *sql.DB) *SQLiteTransactionRepository {
	return &SQLiteTransactionRepository{dbConn: dbConn}
}

// Save upserts the transaction and replaces its staged events.
func (r *SQLiteTransactionRepository) Save(ctx context.Context, tx *domain.Transaction) error {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)

	_, err := querier.ExecContext(ctx, `
		INSERT INTO scheduler_transactions (id, source, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		tx.ID(),
		tx.Source(),
		string(tx.State()),
		tx.CreatedAt().UTC().Format(timeLayout),
		tx.UpdatedAt().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", tx.ID(), err)
	}

	if _, err := querier.ExecContext(ctx,
		`DELETE FROM pending_events WHERE transaction_id = ?`, tx.ID()); err != nil {
		return err
	}

	for position, event := range tx.Pending() {
		presenters, err := json.Marshal(event.Presenters())
		if err != nil {
			return err
		}
		_, err = querier.ExecContext(ctx, `
			INSERT INTO pending_events (id, transaction_id, agent_id, start_time, end_time,
				presenters, media_package, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			event.ID(),
			tx.ID(),
			event.AgentID(),
			event.Period().Start().Format(timeLayout),
			event.Period().End().Format(timeLayout),
			string(presenters),
			event.MediaPackage(),
			position,
		)
		if err != nil {
			return fmt.Errorf("save pending event %s: %w", event.ID(), err)
		}
	}

	return nil
}

// FindByID retrieves a transaction with its staged events.
func (r *SQLiteTransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	row := querier.QueryRowContext(ctx,
		`SELECT id, source, state, created_at, updated_at
		 FROM scheduler_transactions WHERE id = ?`, id)

	tx, err := r.scanTransaction(ctx, querier, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, sharedDomain.ErrNotFound)
	}
	return tx, err
}

// FindOpenBySource retrieves the open transaction for a source, if any.
func (r *SQLiteTransactionRepository) FindOpenBySource(ctx context.Context, source string) (*domain.Transaction, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	row := querier.QueryRowContext(ctx,
		`SELECT id, source, state, created_at, updated_at
		 FROM scheduler_transactions WHERE source = ? AND state = ? LIMIT 1`,
		source, string(domain.TransactionOpen))

	tx, err := r.scanTransaction(ctx, querier, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open transaction for source %s: %w", source, sharedDomain.ErrNotFound)
	}
	return tx, err
}

// ListOpenOlderThan returns open transactions last modified before the cutoff.
func (r *SQLiteTransactionRepository) ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Transaction, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	rows, err := querier.QueryContext(ctx,
		`SELECT id, source, state, created_at, updated_at
		 FROM scheduler_transactions
		 WHERE state = ? AND updated_at < ?
		 ORDER BY updated_at`,
		string(domain.TransactionOpen), cutoff.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []*domain.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(ctx, querier, rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, tx)
	}
	return stale, rows.Err()
}

func (r *SQLiteTransactionRepository) scanTransaction(ctx context.Context, querier sharedPersistence.Querier, row rowScanner) (*domain.Transaction, error) {
	var id, source, state, createdStr, updatedStr string
	if err := row.Scan(&id, &source, &state, &createdStr, &updatedStr); err != nil {
		return nil, err
	}

	createdAt, err := time.Parse(timeLayout, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(timeLayout, updatedStr)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	pending, err := r.loadPending(ctx, querier, id, source, createdAt, updatedAt)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateTransaction(id, source, domain.TransactionState(state),
		pending, createdAt, updatedAt), nil
}

func (r *SQLiteTransactionRepository) loadPending(ctx context.Context, querier sharedPersistence.Querier, transactionID, source string, createdAt, updatedAt time.Time) ([]*domain.ScheduledEvent, error) {
	rows, err := querier.QueryContext(ctx, `
		SELECT id, agent_id, start_time, end_time, presenters, media_package
		FROM pending_events WHERE transaction_id = ? ORDER BY position`,
		transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*domain.ScheduledEvent
	for rows.Next() {
		var id, agentID, startStr, endStr, presentersJSON, mediaPackage string
		if err := rows.Scan(&id, &agentID, &startStr, &endStr, &presentersJSON, &mediaPackage); err != nil {
			return nil, err
		}

		start, err := time.Parse(timeLayout, startStr)
		if err != nil {
			return nil, fmt.Errorf("parse start_time: %w", err)
		}
		end, err := time.Parse(timeLayout, endStr)
		if err != nil {
			return nil, fmt.Errorf("parse end_time: %w", err)
		}
		period, err := domain.NewPeriod(start, end)
		if err != nil {
			return nil, err
		}

		var presenters []string
		if err := json.Unmarshal([]byte(presentersJSON), &presenters); err != nil {
			return nil, fmt.Errorf("parse presenters: %w", err)
		}

		pending = append(pending, domain.RehydrateScheduledEvent(id, agentID, period,
			presenters, mediaPackage, source, domain.StatusScheduled, false,
			createdAt, updatedAt))
	}
	return pending, rows.Err()
}
