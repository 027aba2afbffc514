package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/internal/archive/domain"
	lifecycleDomain "github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/capstan/internal/shared/infrastructure/persistence"
)

const timeLayout = time.RFC3339

// SQLiteSnapshotStore implements domain.Store using SQLite. Snapshots are
// append-only; the composite primary key (event_id, version) rejects any
// attempt to rewrite history.
type SQLiteSnapshotStore struct {
	dbConn *sql.DB
}

// NewSQLiteSnapshotStore creates a new SQLite snapshot store.
func NewSQLiteSnapshotStore(dbConn *sql.DB) *SQLiteSnapshotStore {
	return &SQLiteSnapshotStore{dbConn: dbConn}
}

// Latest returns the highest-version snapshot for an event.
func (s *SQLiteSnapshotStore) Latest(ctx context.Context, eventID string) (*domain.Snapshot, error) {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	row := querier.QueryRowContext(ctx, `
		SELECT event_id, version, media_package, archived_at
		FROM archive_snapshots
		WHERE event_id = ?
		ORDER BY version DESC
		LIMIT 1`, eventID)

	var (
		snapshot    domain.Snapshot
		mpJSON      string
		archivedStr string
	)
	err := row.Scan(&snapshot.EventID, &snapshot.Version, &mpJSON, &archivedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshots for event %s: %w", eventID, sharedDomain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	mp, err := lifecycleDomain.ParseMediaPackage([]byte(mpJSON))
	if err != nil {
		return nil, err
	}
	snapshot.MediaPackage = mp

	archivedAt, err := time.Parse(timeLayout, archivedStr)
	if err != nil {
		return nil, fmt.Errorf("parse archived_at: %w", err)
	}
	snapshot.ArchivedAt = archivedAt

	return &snapshot, nil
}

// TakeSnapshot appends a new snapshot and returns its version.
func (s *SQLiteSnapshotStore) TakeSnapshot(ctx context.Context, eventID string, mp lifecycleDomain.MediaPackage) (int64, error) {
	raw, err := mp.Encode()
	if err != nil {
		return 0, err
	}

	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)

	// next version = current max + 1, atomically within the insert
	var version int64
	err = querier.QueryRowContext(ctx, `
		INSERT INTO archive_snapshots (event_id, version, media_package, archived_at)
		VALUES (?, (SELECT COALESCE(MAX(version), 0) + 1 FROM archive_snapshots WHERE event_id = ?), ?, ?)
		RETURNING version`,
		eventID, eventID, string(raw), time.Now().UTC().Format(timeLayout),
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("take snapshot for event %s: %w", eventID, err)
	}

	return version, nil
}

// DeleteAll removes every snapshot of an event.
func (s *SQLiteSnapshotStore) DeleteAll(ctx context.Context, eventID string) error {
	querier := sharedPersistence.QuerierFromContext(ctx, s.dbConn)
	result, err := querier.ExecContext(ctx,
		`DELETE FROM archive_snapshots WHERE event_id = ?`, eventID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("snapshots for event %s: %w", eventID, sharedDomain.ErrNotFound)
	}
	return nil
}
