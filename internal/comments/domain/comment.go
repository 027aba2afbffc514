package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Comment is a reviewer note attached to an event.
type Comment struct {
	ID        string
	EventID   string
	Author    string
	Body      string
	CreatedAt time.Time
}

// NewComment creates a comment on an event.
func NewComment(eventID, author, body string) (*Comment, error) {
	if eventID == "" {
		return nil, errors.New("event id must not be empty")
	}
	if body == "" {
		return nil, errors.New("comment body must not be empty")
	}
	return &Comment{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Author:    author,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Store persists event comments.
type Store interface {
	Save(ctx context.Context, comment *Comment) error
	ListByEvent(ctx context.Context, eventID string) ([]*Comment, error)

	// DeleteComments removes all comments of an event. Deleting comments of
	// an event that has none is not an error; the cleanup is best-effort.
	DeleteComments(ctx context.Context, eventID string) error
}
