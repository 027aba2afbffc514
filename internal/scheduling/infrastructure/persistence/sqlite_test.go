package persistence

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(ctx, db))
	return db
}

func newEvent(t *testing.T, id, agentID string, start time.Time, d time.Duration) *domain.ScheduledEvent {
	t.Helper()
	event, err := domain.NewScheduledEvent(id, agentID,
		domain.MustPeriod(start, start.Add(d)),
		[]string{"presenter-1"}, "mp-"+id, "ui-1")
	require.NoError(t, err)
	return event
}

func TestSQLiteSchedulingStore_RoundTrip(t *testing.T) {
	db := setupDB(t)
	store := NewSQLiteSchedulingStore(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	event := newEvent(t, "e1", "room-A", base, time.Hour)
	require.NoError(t, store.PersistEvents(ctx, []*domain.ScheduledEvent{event}))

	loaded, err := store.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "room-A", loaded.AgentID())
	assert.True(t, loaded.Period().Start().Equal(base))
	assert.Equal(t, []string{"presenter-1"}, loaded.Presenters())
	assert.Equal(t, "mp-e1", loaded.MediaPackage())
	assert.Equal(t, "ui-1", loaded.Source())
	assert.Equal(t, domain.StatusScheduled, loaded.Status())
	assert.False(t, loaded.RecordingStarted())
}

func TestSQLiteSchedulingStore_GetEvent_NotFound(t *testing.T) {
	store := NewSQLiteSchedulingStore(setupDB(t))
	_, err := store.GetEvent(context.Background(), "missing")
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestSQLiteSchedulingStore_ListEventsForAgent(t *testing.T) {
	db := setupDB(t)
	store := NewSQLiteSchedulingStore(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.PersistEvents(ctx, []*domain.ScheduledEvent{
		newEvent(t, "late", "room-A", base.Add(4*time.Hour), time.Hour),
		newEvent(t, "early", "room-A", base, time.Hour),
		newEvent(t, "elsewhere", "room-B", base, time.Hour),
	}))

	events, err := store.ListEventsForAgent(ctx, "room-A")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "early", events[0].ID())
	assert.Equal(t, "late", events[1].ID())
}

func TestSQLiteSchedulingStore_UpdateEvent(t *testing.T) {
	db := setupDB(t)
	store := NewSQLiteSchedulingStore(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.PersistEvents(ctx, []*domain.ScheduledEvent{
		newEvent(t, "e1", "room-A", base, time.Hour),
	}))

	newPeriod := domain.MustPeriod(base.Add(2*time.Hour), base.Add(3*time.Hour))
	agent := "room-B"
	require.NoError(t, store.UpdateEvent(ctx, "e1", domain.EventChanges{
		Period:  &newPeriod,
		AgentID: &agent,
	}))

	loaded, err := store.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "room-B", loaded.AgentID())
	assert.True(t, loaded.Period().Start().Equal(base.Add(2*time.Hour)))
	// Untouched fields survive.
	assert.Equal(t, "mp-e1", loaded.MediaPackage())

	t.Run("empty changes are a no-op", func(t *testing.T) {
		assert.NoError(t, store.UpdateEvent(ctx, "e1", domain.EventChanges{}))
	})

	t.Run("unknown event", func(t *testing.T) {
		status := domain.StatusRecording
		err := store.UpdateEvent(ctx, "missing", domain.EventChanges{Status: &status})
		assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
	})
}

func TestSQLiteSchedulingStore_RemoveEvent(t *testing.T) {
	db := setupDB(t)
	store := NewSQLiteSchedulingStore(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.PersistEvents(ctx, []*domain.ScheduledEvent{
		newEvent(t, "e1", "room-A", base, time.Hour),
	}))

	require.NoError(t, store.RemoveEvent(ctx, "e1"))
	_, err := store.GetEvent(ctx, "e1")
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)

	assert.ErrorIs(t, store.RemoveEvent(ctx, "e1"), sharedDomain.ErrNotFound)
}

func TestSQLiteTransactionRepository_RoundTrip(t *testing.T) {
	db := setupDB(t)
	repo := NewSQLiteTransactionRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	tx, err := domain.NewTransaction("ui-1")
	require.NoError(t, err)
	require.NoError(t, tx.Stage(newEvent(t, "p1", "room-A", base, time.Hour)))
	require.NoError(t, tx.Stage(newEvent(t, "p2", "room-A", base.Add(2*time.Hour), time.Hour)))
	require.NoError(t, repo.Save(ctx, tx))

	loaded, err := repo.FindByID(ctx, tx.ID())
	require.NoError(t, err)
	assert.Equal(t, "ui-1", loaded.Source())
	assert.Equal(t, domain.TransactionOpen, loaded.State())

	pending := loaded.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "p1", pending[0].ID(), "staging order preserved")
	assert.Equal(t, "p2", pending[1].ID())
	assert.True(t, pending[0].Period().Start().Equal(base))
}

func TestSQLiteTransactionRepository_SaveReplacesPending(t *testing.T) {
	db := setupDB(t)
	repo := NewSQLiteTransactionRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	tx, err := domain.NewTransaction("ui-1")
	require.NoError(t, err)
	require.NoError(t, tx.Stage(newEvent(t, "p1", "room-A", base, time.Hour)))
	require.NoError(t, repo.Save(ctx, tx))

	// Rolling back empties pending; a re-save must not resurrect them.
	require.NoError(t, tx.MarkRolledBack())
	require.NoError(t, repo.Save(ctx, tx))

	loaded, err := repo.FindByID(ctx, tx.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStateRolledBack, loaded.State())
	assert.Empty(t, loaded.Pending())
}

func TestSQLiteTransactionRepository_FindOpenBySource(t *testing.T) {
	db := setupDB(t)
	repo := NewSQLiteTransactionRepository(db)
	ctx := context.Background()

	_, err := repo.FindOpenBySource(ctx, "ui-1")
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)

	tx, err := domain.NewTransaction("ui-1")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, tx))

	found, err := repo.FindOpenBySource(ctx, "ui-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), found.ID())

	// Committed transactions no longer count as open.
	require.NoError(t, tx.MarkCommitted())
	require.NoError(t, repo.Save(ctx, tx))
	_, err = repo.FindOpenBySource(ctx, "ui-1")
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
}

func TestSQLiteTransactionRepository_ListOpenOlderThan(t *testing.T) {
	db := setupDB(t)
	repo := NewSQLiteTransactionRepository(db)
	ctx := context.Background()

	old := time.Now().UTC().Add(-2 * time.Hour)
	stale := domain.RehydrateTransaction("stale", "ui-old", domain.TransactionOpen, nil, old, old)
	require.NoError(t, repo.Save(ctx, stale))

	fresh, err := domain.NewTransaction("ui-new")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, fresh))

	found, err := repo.ListOpenOlderThan(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "stale", found[0].ID())
}

func TestSQLiteSourceLock(t *testing.T) {
	db := setupDB(t)
	lock := NewSQLiteSourceLock(db)
	ctx := context.Background()

	require.NoError(t, lock.Acquire(ctx, "ui-1", "tx-1"))

	t.Run("held by another transaction", func(t *testing.T) {
		err := lock.Acquire(ctx, "ui-1", "tx-2")
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
	})

	t.Run("re-acquire by holder", func(t *testing.T) {
		assert.NoError(t, lock.Acquire(ctx, "ui-1", "tx-1"))
	})

	t.Run("independent sources", func(t *testing.T) {
		assert.NoError(t, lock.Acquire(ctx, "ui-2", "tx-2"))
	})

	t.Run("release frees the source", func(t *testing.T) {
		require.NoError(t, lock.Release(ctx, "ui-1", "tx-1"))
		assert.NoError(t, lock.Acquire(ctx, "ui-1", "tx-3"))
	})

	t.Run("release by a non-holder keeps the lock", func(t *testing.T) {
		require.NoError(t, lock.Release(ctx, "ui-1", "tx-1"))
		err := lock.Acquire(ctx, "ui-1", "tx-4")
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		assert.NoError(t, lock.Release(ctx, "unheld", "tx-1"))
	})
}

func TestSQLiteSourceLock_ConcurrentAcquire(t *testing.T) {
	db := setupDB(t)
	lock := NewSQLiteSourceLock(db)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, txID := range []string{"tx-1", "tx-2"} {
		wg.Add(1)
		go func(txID string) {
			defer wg.Done()
			results <- lock.Acquire(context.Background(), "ui-1", txID)
		}(txID)
	}
	wg.Wait()
	close(results)

	// The insert-wins path admits exactly one of the two racers.
	var failures []error
	for err := range results {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], domain.ErrTransactionConflict)
}
