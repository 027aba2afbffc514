package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/capstan/internal/comments/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

// PostgresCommentStore implements domain.Store using PostgreSQL.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCommentStore creates a new PostgreSQL comment store.
func NewPostgresCommentStore(pool *pgxpool.Pool) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

// Save stores a comment.
func (s *PostgresCommentStore) Save(ctx context.Context, comment *domain.Comment) error {
	executor := sharedPersistence.Executor(ctx, s.pool)
	_, err := executor.Exec(ctx, `
		INSERT INTO event_comments (id, event_id, author, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		comment.ID, comment.EventID, comment.Author, comment.Body, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("save comment %s: %w", comment.ID, err)
	}
	return nil
}

// ListByEvent returns an event's comments, oldest first.
func (s *PostgresCommentStore) ListByEvent(ctx context.Context, eventID string) ([]*domain.Comment, error) {
	executor := sharedPersistence.Executor(ctx, s.pool)
	rows, err := executor.Query(ctx, `
		SELECT id, event_id, author, body, created_at
		FROM event_comments
		WHERE event_id = $1
		ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var (
			comment   domain.Comment
			createdAt time.Time
		)
		if err := rows.Scan(&comment.ID, &comment.EventID, &comment.Author,
			&comment.Body, &createdAt); err != nil {
			return nil, err
		}
		comment.CreatedAt = createdAt.UTC()
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

// DeleteComments removes all comments of an event.
func (s *PostgresCommentStore) DeleteComments(ctx context.Context, eventID string) error {
	executor := sharedPersistence.Executor(ctx, s.pool)
	_, err := executor.Exec(ctx,
		`DELETE FROM event_comments WHERE event_id = $1`, eventID)
	return err
}
