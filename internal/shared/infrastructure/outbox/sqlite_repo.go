package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

const timeLayout = time.RFC3339

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	dbConn *sql.DB
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(dbConn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{dbConn: dbConn}
}

// Save stores a new outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)

	result, err := querier.ExecContext(ctx, `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type,
			routing_key, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.RoutingKey,
		string(msg.Payload),
		nullableJSON(msg.Metadata),
		msg.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save outbox message: %w", err)
	}

	msg.ID, err = result.LastInsertId()
	return err
}

// SaveBatch stores multiple outbox messages. Callers run it inside a unit of
// work so the batch lands atomically with the aggregate write.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// GetUnpublished retrieves unpublished messages ordered by creation time.
// Messages waiting on a retry backoff are excluded until their time comes.
func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	rows, err := querier.QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, routing_key,
			payload, metadata, created_at, retry_count
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at
		LIMIT ?`,
		time.Now().UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkPublished marks a message as successfully published.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	_, err := querier.ExecContext(ctx,
		`UPDATE outbox SET published_at = ?, last_error = NULL WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), id)
	return err
}

// MarkFailed records a publish failure with error message.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	_, err := querier.ExecContext(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		errMsg, nextRetryAt.UTC().Format(timeLayout), id)
	return err
}

// MarkDead marks a message as dead-lettered.
func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	_, err := querier.ExecContext(ctx, `
		UPDATE outbox
		SET dead_lettered_at = ?, dead_letter_reason = ?
		WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), reason, id)
	return err
}

// GetFailed retrieves failed messages eligible for retry.
func (r *SQLiteRepository) GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	rows, err := querier.QueryContext(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, routing_key,
			payload, metadata, created_at, retry_count
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND retry_count > 0
		  AND retry_count < ?
		ORDER BY created_at
		LIMIT ?`,
		maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// DeleteOld removes successfully published messages older than the retention
// period.
func (r *SQLiteRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, r.dbConn)
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	result, err := querier.ExecContext(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		cutoff.Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	var msgs []*Message
	for rows.Next() {
		var (
			msg        Message
			eventIDStr sql.NullString
			payload    string
			metadata   sql.NullString
			createdStr string
		)
		err := rows.Scan(&msg.ID, &eventIDStr, &msg.AggregateType, &msg.AggregateID,
			&msg.EventType, &msg.RoutingKey, &payload, &metadata, &createdStr, &msg.RetryCount)
		if err != nil {
			return nil, err
		}

		if eventIDStr.Valid {
			eventID, err := uuid.Parse(eventIDStr.String)
			if err != nil {
				return nil, fmt.Errorf("parse event_id: %w", err)
			}
			msg.EventID = eventID
		}

		createdAt, err := time.Parse(timeLayout, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		msg.CreatedAt = createdAt
		msg.Payload = json.RawMessage(payload)
		if metadata.Valid {
			msg.Metadata = json.RawMessage(metadata.String)
		}

		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
