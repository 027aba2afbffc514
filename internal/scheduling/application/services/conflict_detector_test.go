package services

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedEvent(t *testing.T, store *memStore, id, agentID string, start time.Time, d time.Duration) *domain.ScheduledEvent {
	t.Helper()
	event, err := domain.NewScheduledEvent(id, agentID,
		domain.MustPeriod(start, start.Add(d)), nil, "mp-"+id, "")
	require.NoError(t, err)
	require.NoError(t, store.PersistEvents(context.Background(), []*domain.ScheduledEvent{event}))
	return event
}

func TestConflictDetector_FindConflicts(t *testing.T) {
	store := newMemStore()
	detector := NewConflictDetector(store)
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	storedEvent(t, store, "morning", "room-A", base, time.Hour)
	storedEvent(t, store, "noon", "room-A", base.Add(3*time.Hour), time.Hour)
	storedEvent(t, store, "other-agent", "room-B", base, time.Hour)

	t.Run("overlap on same agent", func(t *testing.T) {
		conflicts, err := detector.FindConflicts(context.Background(), "room-A",
			[]domain.Period{domain.MustPeriod(base.Add(30*time.Minute), base.Add(90*time.Minute))}, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"morning"}, conflicts.IDs())
	})

	t.Run("different agent does not conflict", func(t *testing.T) {
		conflicts, err := detector.FindConflicts(context.Background(), "room-B",
			[]domain.Period{domain.MustPeriod(base.Add(3*time.Hour), base.Add(4*time.Hour))}, "")
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("touching endpoints do not conflict", func(t *testing.T) {
		conflicts, err := detector.FindConflicts(context.Background(), "room-A",
			[]domain.Period{domain.MustPeriod(base.Add(time.Hour), base.Add(2*time.Hour))}, "")
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("multiple candidates ordered by start", func(t *testing.T) {
		conflicts, err := detector.FindConflicts(context.Background(), "room-A",
			[]domain.Period{
				domain.MustPeriod(base.Add(3*time.Hour), base.Add(5*time.Hour)),
				domain.MustPeriod(base, base.Add(30*time.Minute)),
			}, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"morning", "noon"}, conflicts.IDs())
	})

	t.Run("exclude id skips the event itself", func(t *testing.T) {
		conflicts, err := detector.FindConflicts(context.Background(), "room-A",
			[]domain.Period{domain.MustPeriod(base, base.Add(time.Hour))}, "morning")
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("empty agent id", func(t *testing.T) {
		_, err := detector.FindConflicts(context.Background(), "", nil, "")
		assert.ErrorIs(t, err, domain.ErrEmptyAgentID)
	})
}
