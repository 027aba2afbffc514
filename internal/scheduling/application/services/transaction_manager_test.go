package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *memStore
	txRepo  *memTxRepo
	locks   *memLock
	outbox  *memOutbox
	manager *TransactionManager
}

func newFixture() *fixture {
	f := &fixture{
		store:  newMemStore(),
		txRepo: newMemTxRepo(),
		locks:  newMemLock(),
		outbox: &memOutbox{},
	}
	f.manager = NewTransactionManager(f.txRepo, f.store, f.locks,
		NewConflictDetector(f.store), f.outbox, noopUnitOfWork{}, "test")
	return f
}

func addParams(agentID string, start time.Time, d time.Duration) AddEventParams {
	return AddEventParams{
		AgentID:      agentID,
		Period:       domain.MustPeriod(start, start.Add(d)),
		MediaPackage: "mp-1",
	}
}

func TestTransactionManager_Open(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tx, err := f.manager.Open(ctx, "ui-1")
	require.NoError(t, err)
	assert.True(t, tx.IsOpen())
	assert.True(t, f.locks.held("ui-1"))
	assert.Contains(t, f.outbox.routingKeys(), domain.RoutingKeyTransactionOpened)

	t.Run("second open on the same source conflicts", func(t *testing.T) {
		_, err := f.manager.Open(ctx, "ui-1")
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
	})

	t.Run("other sources are independent", func(t *testing.T) {
		_, err := f.manager.Open(ctx, "ui-2")
		assert.NoError(t, err)
	})

	t.Run("concurrent opens on one source admit exactly one", func(t *testing.T) {
		f := newFixture()
		results := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.manager.Open(context.Background(), "ui-raced")
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var failures []error
		for err := range results {
			if err != nil {
				failures = append(failures, err)
			}
		}
		require.Len(t, failures, 1)
		assert.ErrorIs(t, failures[0], domain.ErrTransactionConflict)
	})
}

func TestTransactionManager_AddEvent(t *testing.T) {
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	t.Run("stages a clear event", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		event, err := f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base, time.Hour))
		require.NoError(t, err)
		assert.NotEmpty(t, event.ID())
		assert.Equal(t, "ui-1", event.Source())

		// Staged, not committed: the store stays empty.
		_, err = f.store.GetEvent(ctx, event.ID())
		assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
	})

	t.Run("conflict with committed event", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		storedEvent(t, f.store, "existing", "room-A", base, time.Hour)

		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		_, err = f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base.Add(30*time.Minute), time.Hour))
		require.ErrorIs(t, err, domain.ErrScheduleConflict)

		var conflictErr *domain.ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, []string{"existing"}, conflictErr.Conflicts.IDs())

		fresh, err := f.manager.Get(ctx, tx.ID())
		require.NoError(t, err)
		assert.Empty(t, fresh.Pending(), "rejected event must not be staged")
	})

	t.Run("conflict with pending event in the same transaction", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		_, err = f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base, time.Hour))
		require.NoError(t, err)

		_, err = f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base.Add(30*time.Minute), time.Hour))
		assert.ErrorIs(t, err, domain.ErrScheduleConflict)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		f := newFixture()
		_, err := f.manager.AddEvent(context.Background(), "missing", addParams("room-A", base, time.Hour))
		assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
	})
}

func TestTransactionManager_LockLoss(t *testing.T) {
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	t.Run("staging reclaims a lapsed lock", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		f.locks.expire("ui-1")

		_, err = f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base, time.Hour))
		require.NoError(t, err)
		assert.Equal(t, tx.ID(), f.locks.holder("ui-1"))
	})

	t.Run("staging fails once the source changed hands", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		f.locks.expire("ui-1")
		takeover, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		_, err = f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base, time.Hour))
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
		assert.Equal(t, takeover.ID(), f.locks.holder("ui-1"))
	})

	t.Run("finishing a displaced transaction keeps the new holder's lock", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		f.locks.expire("ui-1")
		takeover, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		require.NoError(t, f.manager.Rollback(ctx, tx.ID()))
		assert.Equal(t, takeover.ID(), f.locks.holder("ui-1"))
	})
}

func TestTransactionManager_Commit(t *testing.T) {
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	t.Run("persists pending events and releases the lock", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		first, err := f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base, time.Hour))
		require.NoError(t, err)
		second, err := f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base.Add(2*time.Hour), time.Hour))
		require.NoError(t, err)

		require.NoError(t, f.manager.Commit(ctx, tx.ID()))

		for _, id := range []string{first.ID(), second.ID()} {
			_, err := f.store.GetEvent(ctx, id)
			assert.NoError(t, err)
		}
		assert.False(t, f.locks.held("ui-1"))

		keys := f.outbox.routingKeys()
		assert.Contains(t, keys, domain.RoutingKeyEventScheduled)
		assert.Contains(t, keys, domain.RoutingKeyTransactionCommitted)

		// The source is free for a new transaction.
		_, err = f.manager.Open(ctx, "ui-1")
		assert.NoError(t, err)
	})

	t.Run("conflict detected at commit rolls the transaction back", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)

		staged, err := f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base, time.Hour))
		require.NoError(t, err)

		// An overlapping event lands in committed state after staging.
		storedEvent(t, f.store, "raced", "room-A", base.Add(30*time.Minute), time.Hour)

		err = f.manager.Commit(ctx, tx.ID())
		require.ErrorIs(t, err, domain.ErrScheduleConflict)

		var conflictErr *domain.ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, []string{"raced"}, conflictErr.Conflicts.IDs())

		fresh, err := f.manager.Get(ctx, tx.ID())
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionStateRolledBack, fresh.State())
		assert.False(t, f.locks.held("ui-1"))

		_, err = f.store.GetEvent(ctx, staged.ID())
		assert.ErrorIs(t, err, sharedDomain.ErrNotFound, "no partial persistence")
	})

	t.Run("commit after commit", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		tx, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)
		require.NoError(t, f.manager.Commit(ctx, tx.ID()))
		assert.ErrorIs(t, f.manager.Commit(ctx, tx.ID()), domain.ErrTransactionNotOpen)
	})
}

func TestTransactionManager_Rollback(t *testing.T) {
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	f := newFixture()
	ctx := context.Background()

	tx, err := f.manager.Open(ctx, "ui-1")
	require.NoError(t, err)
	staged, err := f.manager.AddEvent(ctx, tx.ID(), addParams("room-A", base, time.Hour))
	require.NoError(t, err)

	require.NoError(t, f.manager.Rollback(ctx, tx.ID()))
	assert.False(t, f.locks.held("ui-1"))
	_, err = f.store.GetEvent(ctx, staged.ID())
	assert.ErrorIs(t, err, sharedDomain.ErrNotFound)

	t.Run("rollback is idempotent", func(t *testing.T) {
		assert.NoError(t, f.manager.Rollback(ctx, tx.ID()))
	})

	t.Run("rollback after commit fails", func(t *testing.T) {
		tx2, err := f.manager.Open(ctx, "ui-1")
		require.NoError(t, err)
		require.NoError(t, f.manager.Commit(ctx, tx2.ID()))
		assert.Error(t, f.manager.Rollback(ctx, tx2.ID()))
	})
}

func TestTransactionManager_ScheduleEvents(t *testing.T) {
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	newEvent := func(t *testing.T, id string, start time.Time) *domain.ScheduledEvent {
		t.Helper()
		event, err := domain.NewScheduledEvent(id, "room-A",
			domain.MustPeriod(start, start.Add(time.Hour)), nil, "mp-"+id, "api")
		require.NoError(t, err)
		return event
	}

	t.Run("persists a clear batch", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()

		err := f.manager.ScheduleEvents(ctx, "api", []*domain.ScheduledEvent{
			newEvent(t, "e1", base),
			newEvent(t, "e2", base.Add(2*time.Hour)),
		})
		require.NoError(t, err)

		_, err = f.store.GetEvent(ctx, "e1")
		assert.NoError(t, err)
		assert.Contains(t, f.outbox.routingKeys(), domain.RoutingKeyEventScheduled)
	})

	t.Run("rejected while the source has an open transaction", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		_, err := f.manager.Open(ctx, "api")
		require.NoError(t, err)

		err = f.manager.ScheduleEvents(ctx, "api", []*domain.ScheduledEvent{newEvent(t, "e1", base)})
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
	})

	t.Run("overlap inside the batch fails all-or-nothing", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()

		err := f.manager.ScheduleEvents(ctx, "api", []*domain.ScheduledEvent{
			newEvent(t, "e1", base),
			newEvent(t, "e2", base.Add(30*time.Minute)),
		})
		require.ErrorIs(t, err, domain.ErrScheduleConflict)

		_, err = f.store.GetEvent(ctx, "e1")
		assert.ErrorIs(t, err, sharedDomain.ErrNotFound)
	})
}

func TestSweeper_Sweep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(f.txRepo, f.manager, time.Hour, logger)

	// A stale open transaction, rehydrated with an old timestamp.
	old := time.Now().UTC().Add(-2 * time.Hour)
	stale := domain.RehydrateTransaction("stale-tx", "ui-old", domain.TransactionOpen, nil, old, old)
	require.NoError(t, f.txRepo.Save(ctx, stale))
	require.NoError(t, f.locks.Acquire(ctx, "ui-old", "stale-tx"))

	// A fresh open transaction stays untouched.
	fresh, err := f.manager.Open(ctx, "ui-fresh")
	require.NoError(t, err)

	swept, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	assert.Equal(t, domain.TransactionStateRolledBack, stale.State())
	assert.False(t, f.locks.held("ui-old"))

	kept, err := f.manager.Get(ctx, fresh.ID())
	require.NoError(t, err)
	assert.True(t, kept.IsOpen())
	assert.True(t, f.locks.held("ui-fresh"))
}
