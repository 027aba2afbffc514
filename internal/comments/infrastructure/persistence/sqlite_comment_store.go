package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/internal/comments/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

const timeLayout = time.RFC3339

// SQLiteCommentStore implements domain.Store using SQLite.
type SQLiteCommentStore struct {
	dbConn *sql.DB
}

// NewSQLiteCommentStore creates a new SQLite comment store.
func NewSQLiteCommentStore(dbConn *sql.DB) *SQLiteCommentStore {
	return &SQLiteCommentStore{dbConn: dbConn}
}

// Save stores a comment.
func (s *SQLiteCommentStore) Save(ctx context.Context, comment *domain.Comment) error {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	_, err := querier.ExecContext(ctx, `
		INSERT INTO event_comments (id, event_id, author, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		comment.ID, comment.EventID, comment.Author, comment.Body,
		comment.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save comment %s: %w", comment.ID, err)
	}
	return nil
}

// ListByEvent returns an event's comments, oldest first.
func (s *SQLiteCommentStore) ListByEvent(ctx context.Context, eventID string) ([]*domain.Comment, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	rows, err := querier.QueryContext(ctx, `
		SELECT id, event_id, author, body, created_at
		FROM event_comments
		WHERE event_id = ?
		ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var (
			comment    domain.Comment
			createdStr string
		)
		if err := rows.Scan(&comment.ID, &comment.EventID, &comment.Author,
			&comment.Body, &createdStr); err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(timeLayout, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		comment.CreatedAt = createdAt
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

// DeleteComments removes all comments of an event.
func (s *SQLiteCommentStore) DeleteComments(ctx context.Context, eventID string) error {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	_, err := querier.ExecContext(ctx,
		`DELETE FROM event_comments WHERE event_id = ?`, eventID)
	return err
}
