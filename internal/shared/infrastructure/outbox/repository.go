package outbox

import (
	"context"
	"time"
)

// Repository persists outbox messages alongside the domain writes that
// produce them and hands them to the processor for publishing.
type Repository interface {
	// Save stores one message.
	Save(ctx context.Context, msg *Message) error

	// SaveBatch stores msgs in one write; all or none become visible.
	SaveBatch(ctx context.Context, msgs []*Message) error

	// GetUnpublished returns up to limit unpublished messages, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)

	// MarkPublished records a successful publish.
	MarkPublished(ctx context.Context, id int64) error

	// MarkFailed records a failed publish attempt and when to retry it.
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error

	// MarkDead parks a message that exhausted its retries.
	MarkDead(ctx context.Context, id int64, reason string) error

	// GetFailed returns messages below maxRetries whose retry time has passed.
	GetFailed(ctx context.Context, maxRetries, limit int) ([]*Message, error)

	// DeleteOld removes published messages older than the retention window
	// and reports how many were deleted.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
