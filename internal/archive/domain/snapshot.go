package domain

import (
	"context"
	"time"

	lifecycleDomain "github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
)

// Snapshot is an immutable, versioned capture of an event's media package.
// Versions are monotonically increasing per event; a snapshot is never
// mutated after it is taken.
type Snapshot struct {
	EventID      string
	Version      int64
	MediaPackage lifecycleDomain.MediaPackage
	ArchivedAt   time.Time
}

// Store persists versioned snapshots. Implementations map a missing event
// onto shared domain.ErrNotFound.
type Store interface {
	// Latest returns the highest-version snapshot for an event.
	Latest(ctx context.Context, eventID string) (*Snapshot, error)

	// TakeSnapshot appends a new snapshot and returns its version.
	TakeSnapshot(ctx context.Context, eventID string, mp lifecycleDomain.MediaPackage) (int64, error)

	// DeleteAll removes every snapshot of an event.
	DeleteAll(ctx context.Context, eventID string) error
}
