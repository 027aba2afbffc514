package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/capstan/internal/archive/domain"
	lifecycleDomain "github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

// PostgresSnapshotStore implements domain.Store using PostgreSQL.
type PostgresSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSnapshotStore creates a new PostgreSQL snapshot store.
func NewPostgresSnapshotStore(pool *pgxpool.Pool) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{pool: pool}
}

// Latest returns the highest-version snapshot for an event.
func (s *PostgresSnapshotStore) Latest(ctx context.Context, eventID string) (*domain.Snapshot, error) {
	executor := sharedPersistence.Executor(ctx, s.pool)
	row := executor.QueryRow(ctx, `
		SELECT event_id, version, media_package, archived_at
		FROM archive_snapshots
		WHERE event_id = $1
		ORDER BY version DESC
		LIMIT 1`, eventID)

	var (
		snapshot   domain.Snapshot
		mpJSON     []byte
		archivedAt time.Time
	)
	err := row.Scan(&snapshot.EventID, &snapshot.Version, &mpJSON, &archivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("snapshots for event %s: %w", eventID, sharedDomain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	mp, err := lifecycleDomain.ParseMediaPackage(mpJSON)
	if err != nil {
		return nil, err
	}
	snapshot.MediaPackage = mp
	snapshot.ArchivedAt = archivedAt.UTC()

	return &snapshot, nil
}

// TakeSnapshot appends a new snapshot and returns its version.
func (s *PostgresSnapshotStore) TakeSnapshot(ctx context.Context, eventID string, mp lifecycleDomain.MediaPackage) (int64, error) {
	raw, err := mp.Encode()
	if err != nil {
		return 0, err
	}

	executor := sharedPersistence.Executor(ctx, s.pool)

	var version int64
	err = executor.QueryRow(ctx, `
		INSERT INTO archive_snapshots (event_id, version, media_package, archived_at)
		VALUES ($1, (SELECT COALESCE(MAX(version), 0) + 1 FROM archive_snapshots WHERE event_id = $1), $2, NOW())
		RETURNING version`,
		eventID, raw,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("take snapshot for event %s: %w", eventID, err)
	}

	return version, nil
}

// DeleteAll removes every snapshot of an event.
func (s *PostgresSnapshotStore) DeleteAll(ctx context.Context, eventID string) error {
	executor := sharedPersistence.Executor(ctx, s.pool)
	tag, err := executor.Exec(ctx,
		`DELETE FROM archive_snapshots WHERE event_id = $1`, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("snapshots for event %s: %w", eventID, sharedDomain.ErrNotFound)
	}
	return nil
}
