package domain

import (
	"context"
	"time"
)

// SchedulingStore persists committed scheduled events. Implementations map
// missing events onto shared domain.ErrNotFound and permission failures onto
// shared domain.ErrUnauthorized.
type SchedulingStore interface {
	// GetEvent retrieves a committed event by id.
	GetEvent(ctx context.Context, id string) (*ScheduledEvent, error)

	// ListEventsForAgent retrieves all committed events on a capture agent,
	// ordered by start time.
	ListEventsForAgent(ctx context.Context, agentID string) ([]*ScheduledEvent, error)

	// PersistEvents stores the given events as committed entries in one
	// logical step.
	PersistEvents(ctx context.Context, events []*ScheduledEvent) error

	// UpdateEvent applies a partial update to a committed event.
	UpdateEvent(ctx context.Context, id string, changes EventChanges) error

	// RemoveEvent deletes a committed event.
	RemoveEvent(ctx context.Context, id string) error
}

// TransactionRepository persists scheduling transactions and their staged
// events.
type TransactionRepository interface {
	Save(ctx context.Context, tx *Transaction) error
	FindByID(ctx context.Context, id string) (*Transaction, error)
	FindOpenBySource(ctx context.Context, source string) (*Transaction, error)

	// ListOpenOlderThan returns open transactions whose last modification is
	// before the cutoff. Used by the stale-transaction sweep.
	ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*Transaction, error)
}

// SourceLock serializes transaction ownership per scheduling source: at most
// one open transaction may hold the lock for a source at any time.
type SourceLock interface {
	// Acquire takes the lock for source on behalf of the transaction.
	// Re-acquiring a lock already held by the same transaction succeeds and
	// renews any expiry the implementation attaches; it returns
	// ErrTransactionConflict when another transaction holds the lock.
	Acquire(ctx context.Context, source, transactionID string) error

	// Release frees the lock for source if the transaction still holds it.
	// Releasing an unheld lock, or one held by another transaction, is not
	// an error and leaves the other holder's lock in place.
	Release(ctx context.Context, source, transactionID string) error
}
