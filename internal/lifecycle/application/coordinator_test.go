package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	archiveDomain "github.com/felixgeelhaar/capstan/internal/archive/domain"
	commentsDomain "github.com/felixgeelhaar/capstan/internal/comments/domain"
	"github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	schedDomain "github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/outbox"
	workflowDomain "github.com/felixgeelhaar/capstan/internal/workflow/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	events    map[string]*schedDomain.ScheduledEvent
	updates   map[string]schedDomain.EventChanges
	removeErr error
	removed   []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		events:  make(map[string]*schedDomain.ScheduledEvent),
		updates: make(map[string]schedDomain.EventChanges),
	}
}

func (f *fakeScheduler) GetEvent(_ context.Context, id string) (*schedDomain.ScheduledEvent, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, sharedDomain.ErrNotFound
	}
	return event, nil
}

func (f *fakeScheduler) ListEventsForAgent(_ context.Context, agentID string) ([]*schedDomain.ScheduledEvent, error) {
	var out []*schedDomain.ScheduledEvent
	for _, event := range f.events {
		if event.AgentID() == agentID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakeScheduler) PersistEvents(_ context.Context, events []*schedDomain.ScheduledEvent) error {
	for _, event := range events {
		f.events[event.ID()] = event
	}
	return nil
}

func (f *fakeScheduler) UpdateEvent(_ context.Context, id string, changes schedDomain.EventChanges) error {
	event, ok := f.events[id]
	if !ok {
		return sharedDomain.ErrNotFound
	}
	if err := event.Apply(changes); err != nil {
		return err
	}
	f.updates[id] = changes
	return nil
}

func (f *fakeScheduler) RemoveEvent(_ context.Context, id string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	if _, ok := f.events[id]; !ok {
		return sharedDomain.ErrNotFound
	}
	delete(f.events, id)
	f.removed = append(f.removed, id)
	return nil
}

type fakeEngine struct {
	instances map[string]*workflowDomain.Instance // keyed by event id
	replaced  map[string]domain.MediaPackage      // keyed by workflow id
	stopped   []string
	stopErr   error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		instances: make(map[string]*workflowDomain.Instance),
		replaced:  make(map[string]domain.MediaPackage),
	}
}

func (f *fakeEngine) FindWorkflow(_ context.Context, eventID string) (*workflowDomain.Instance, error) {
	instance, ok := f.instances[eventID]
	if !ok {
		return nil, sharedDomain.ErrNotFound
	}
	return instance, nil
}

func (f *fakeEngine) ReplaceMediaPackageAndPersist(_ context.Context, workflowID string, mp domain.MediaPackage) error {
	f.replaced[workflowID] = mp
	return nil
}

func (f *fakeEngine) StopAndRemove(_ context.Context, workflowID string) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, workflowID)
	return nil
}

type fakeArchive struct {
	snapshots map[string][]*archiveDomain.Snapshot
	deleteErr error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{snapshots: make(map[string][]*archiveDomain.Snapshot)}
}

func (f *fakeArchive) Latest(_ context.Context, eventID string) (*archiveDomain.Snapshot, error) {
	versions := f.snapshots[eventID]
	if len(versions) == 0 {
		return nil, sharedDomain.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

func (f *fakeArchive) TakeSnapshot(_ context.Context, eventID string, mp domain.MediaPackage) (int64, error) {
	version := int64(len(f.snapshots[eventID]) + 1)
	f.snapshots[eventID] = append(f.snapshots[eventID], &archiveDomain.Snapshot{
		EventID:      eventID,
		Version:      version,
		MediaPackage: mp,
		ArchivedAt:   time.Now().UTC(),
	})
	return version, nil
}

func (f *fakeArchive) DeleteAll(_ context.Context, eventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if len(f.snapshots[eventID]) == 0 {
		return sharedDomain.ErrNotFound
	}
	delete(f.snapshots, eventID)
	return nil
}

type fakeComments struct {
	byEvent map[string][]*commentsDomain.Comment
	deleted []string
}

func newFakeComments() *fakeComments {
	return &fakeComments{byEvent: make(map[string][]*commentsDomain.Comment)}
}

func (f *fakeComments) Save(_ context.Context, comment *commentsDomain.Comment) error {
	f.byEvent[comment.EventID] = append(f.byEvent[comment.EventID], comment)
	return nil
}

func (f *fakeComments) ListByEvent(_ context.Context, eventID string) ([]*commentsDomain.Comment, error) {
	return f.byEvent[eventID], nil
}

func (f *fakeComments) DeleteComments(_ context.Context, eventID string) error {
	delete(f.byEvent, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

type memOutbox struct {
	messages []*outbox.Message
}

func (m *memOutbox) Save(_ context.Context, msg *outbox.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memOutbox) SaveBatch(_ context.Context, msgs []*outbox.Message) error {
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *memOutbox) GetUnpublished(_ context.Context, _ int) ([]*outbox.Message, error) {
	return nil, nil
}
func (m *memOutbox) MarkPublished(_ context.Context, _ int64) error { return nil }
func (m *memOutbox) MarkFailed(_ context.Context, _ int64, _ string, _ time.Time) error {
	return nil
}
func (m *memOutbox) MarkDead(_ context.Context, _ int64, _ string) error { return nil }
func (m *memOutbox) GetFailed(_ context.Context, _, _ int) ([]*outbox.Message, error) {
	return nil, nil
}
func (m *memOutbox) DeleteOld(_ context.Context, _ int) (int64, error) { return 0, nil }

func (m *memOutbox) routingKeys() []string {
	keys := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		keys = append(keys, msg.RoutingKey)
	}
	return keys
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (noopUnitOfWork) Commit(_ context.Context) error                     { return nil }
func (noopUnitOfWork) Rollback(_ context.Context) error                   { return nil }

type coordinatorFixture struct {
	scheduler *fakeScheduler
	engine    *fakeEngine
	archive   *fakeArchive
	comments  *fakeComments
	outbox    *memOutbox
	coord     *MutationCoordinator
}

func newFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		scheduler: newFakeScheduler(),
		engine:    newFakeEngine(),
		archive:   newFakeArchive(),
		comments:  newFakeComments(),
		outbox:    &memOutbox{},
	}
	f.coord = NewMutationCoordinator(
		f.scheduler, f.engine, f.archive, f.comments,
		f.outbox, noopUnitOfWork{}, "lifecycle-test",
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *coordinatorFixture) scheduleEvent(t *testing.T, id string, mediaPackage string) *schedDomain.ScheduledEvent {
	t.Helper()
	period, err := schedDomain.NewPeriod(
		time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	event, err := schedDomain.NewScheduledEvent(id, "agent-1", period,
		[]string{"alice"}, mediaPackage, "test")
	require.NoError(t, err)
	f.scheduler.events[id] = event
	return event
}

func (f *coordinatorFixture) addWorkflow(id, eventID string, state domain.WorkflowState, mp domain.MediaPackage) {
	f.engine.instances[eventID] = &workflowDomain.Instance{
		ID: id, EventID: eventID, State: state, MediaPackage: mp,
	}
}

func strPtr(s string) *string { return &s }

func TestMutationCoordinator_ResolveSource(t *testing.T) {
	ctx := context.Background()

	t.Run("active workflow wins", func(t *testing.T) {
		f := newFixture(t)
		f.scheduleEvent(t, "e1", "mp-1")
		f.addWorkflow("wf-1", "e1", domain.WorkflowRunning, domain.MediaPackage{ID: "mp-1"})

		resolution, err := f.coord.ResolveSource(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, domain.SourceWorkflow, resolution.Source)
		assert.False(t, resolution.LowConfidence())
	})

	t.Run("scheduled event without capture routes to schedule", func(t *testing.T) {
		f := newFixture(t)
		f.scheduleEvent(t, "e1", "mp-1")

		resolution, err := f.coord.ResolveSource(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, domain.SourceSchedule, resolution.Source)
	})

	t.Run("archived event routes to archive", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.archive.TakeSnapshot(ctx, "e1", domain.MediaPackage{ID: "mp-1"})
		require.NoError(t, err)

		resolution, err := f.coord.ResolveSource(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, domain.SourceArchive, resolution.Source)
	})

	t.Run("unknown event falls back to schedule", func(t *testing.T) {
		f := newFixture(t)

		resolution, err := f.coord.ResolveSource(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, domain.SourceSchedule, resolution.Source)
		assert.True(t, resolution.LowConfidence())
	})
}

func TestMutationCoordinator_UpdateMetadata(t *testing.T) {
	ctx := context.Background()

	t.Run("workflow route replaces the instance media package", func(t *testing.T) {
		f := newFixture(t)
		f.addWorkflow("wf-1", "e1", domain.WorkflowRunning,
			domain.MediaPackage{ID: "mp-1", Title: "old"})

		err := f.coord.UpdateMetadata(ctx, "e1", domain.MetadataUpdate{Title: strPtr("new")})
		require.NoError(t, err)

		replaced, ok := f.engine.replaced["wf-1"]
		require.True(t, ok)
		assert.Equal(t, "new", replaced.Title)
		assert.Equal(t, []string{schedDomain.RoutingKeyEventUpdated}, f.outbox.routingKeys())
	})

	t.Run("archive route appends a new snapshot", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.archive.TakeSnapshot(ctx, "e1", domain.MediaPackage{ID: "mp-1", Title: "old"})
		require.NoError(t, err)

		require.NoError(t, f.coord.UpdateMetadata(ctx, "e1",
			domain.MetadataUpdate{Title: strPtr("new")}))

		latest, err := f.archive.Latest(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), latest.Version)
		assert.Equal(t, "new", latest.MediaPackage.Title)

		// The earlier version is untouched.
		assert.Equal(t, "old", f.archive.snapshots["e1"][0].MediaPackage.Title)
	})

	t.Run("schedule route rewrites the stored entry", func(t *testing.T) {
		f := newFixture(t)
		f.scheduleEvent(t, "e1", `{"id":"mp-1","title":"old"}`)

		newEnd := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
		presenters := []string{"bob"}
		err := f.coord.UpdateMetadata(ctx, "e1", domain.MetadataUpdate{
			Title:      strPtr("new"),
			End:        &newEnd,
			Presenters: &presenters,
		})
		require.NoError(t, err)

		event := f.scheduler.events["e1"]
		assert.Equal(t, newEnd, event.Period().End())
		assert.Equal(t, []string{"bob"}, event.Presenters())

		mp, err := domain.ParseMediaPackage([]byte(event.MediaPackage()))
		require.NoError(t, err)
		assert.Equal(t, "new", mp.Title)
		assert.Equal(t, []string{"bob"}, mp.Presenters)
	})

	t.Run("bare media package reference is promoted", func(t *testing.T) {
		f := newFixture(t)
		f.scheduleEvent(t, "e1", "mp-opaque")

		require.NoError(t, f.coord.UpdateMetadata(ctx, "e1",
			domain.MetadataUpdate{Title: strPtr("titled")}))

		mp, err := domain.ParseMediaPackage([]byte(f.scheduler.events["e1"].MediaPackage()))
		require.NoError(t, err)
		assert.Equal(t, "mp-opaque", mp.ID)
		assert.Equal(t, "titled", mp.Title)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.coord.UpdateMetadata(ctx, "e1", domain.MetadataUpdate{}))
		assert.Empty(t, f.outbox.messages)
	})
}

func TestMutationCoordinator_UpdateACL(t *testing.T) {
	ctx := context.Background()
	acl := domain.ACL{{Role: "ROLE_ADMIN", Action: "write", Allow: true}}

	t.Run("workflow-owned events reject ACL changes", func(t *testing.T) {
		f := newFixture(t)
		f.addWorkflow("wf-1", "e1", domain.WorkflowRunning, domain.MediaPackage{ID: "mp-1"})

		err := f.coord.UpdateACL(ctx, "e1", acl)
		assert.ErrorIs(t, err, domain.ErrWorkflowProcessing)
		assert.Empty(t, f.engine.replaced)
		assert.Empty(t, f.outbox.messages)
	})

	t.Run("archive route snapshots the new ACL", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.archive.TakeSnapshot(ctx, "e1", domain.MediaPackage{ID: "mp-1"})
		require.NoError(t, err)

		require.NoError(t, f.coord.UpdateACL(ctx, "e1", acl))

		latest, err := f.archive.Latest(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, acl, latest.MediaPackage.ACL)
	})

	t.Run("schedule route rewrites the media package", func(t *testing.T) {
		f := newFixture(t)
		f.scheduleEvent(t, "e1", `{"id":"mp-1"}`)

		require.NoError(t, f.coord.UpdateACL(ctx, "e1", acl))

		mp, err := domain.ParseMediaPackage([]byte(f.scheduler.events["e1"].MediaPackage()))
		require.NoError(t, err)
		assert.Equal(t, acl, mp.ACL)
	})
}

func TestMutationCoordinator_RemoveCatalogByFlavor(t *testing.T) {
	ctx := context.Background()
	mp := domain.MediaPackage{
		ID: "mp-1",
		Catalogs: []domain.Catalog{
			{ID: "c1", Flavor: "dublincore/episode"},
			{ID: "c2", Flavor: "security/xacml"},
		},
	}

	t.Run("strips matching catalogs on the archive route", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.archive.TakeSnapshot(ctx, "e1", mp)
		require.NoError(t, err)

		require.NoError(t, f.coord.RemoveCatalogByFlavor(ctx, "e1", "dublincore/episode"))

		latest, err := f.archive.Latest(ctx, "e1")
		require.NoError(t, err)
		require.Len(t, latest.MediaPackage.Catalogs, 1)
		assert.Equal(t, "c2", latest.MediaPackage.Catalogs[0].ID)
	})

	t.Run("missing flavor reports catalog not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.archive.TakeSnapshot(ctx, "e1", mp)
		require.NoError(t, err)

		err = f.coord.RemoveCatalogByFlavor(ctx, "e1", "nope/nope")
		assert.ErrorIs(t, err, domain.ErrCatalogNotFound)

		// No new version was taken.
		latest, lerr := f.archive.Latest(ctx, "e1")
		require.NoError(t, lerr)
		assert.Equal(t, int64(1), latest.Version)
	})
}

func TestMutationCoordinator_RemoveEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("removes from all subsystems and cleans comments", func(t *testing.T) {
		f := newFixture(t)
		f.scheduleEvent(t, "e1", "mp-1")
		f.addWorkflow("wf-1", "e1", domain.WorkflowSucceeded, domain.MediaPackage{ID: "mp-1"})
		_, err := f.archive.TakeSnapshot(ctx, "e1", domain.MediaPackage{ID: "mp-1"})
		require.NoError(t, err)
		comment, err := commentsDomain.NewComment("e1", "reviewer", "cut the intro")
		require.NoError(t, err)
		require.NoError(t, f.comments.Save(ctx, comment))

		report, err := f.coord.RemoveEvent(ctx, "e1")
		require.NoError(t, err)

		assert.Equal(t, domain.OutcomeRemoved, report.Aggregate())
		assert.Equal(t, domain.OutcomeRemoved, report.Scheduler)
		assert.Equal(t, domain.OutcomeRemoved, report.Workflow)
		assert.Equal(t, domain.OutcomeRemoved, report.Archive)
		assert.Equal(t, []string{"wf-1"}, f.engine.stopped)
		assert.Equal(t, []string{"e1"}, f.comments.deleted)
		assert.Equal(t, []string{schedDomain.RoutingKeyEventRemoved}, f.outbox.routingKeys())
	})

	t.Run("all subsystems missing aggregates to not found", func(t *testing.T) {
		f := newFixture(t)

		report, err := f.coord.RemoveEvent(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNotFound, report.Aggregate())
		assert.Empty(t, f.outbox.messages)
	})

	t.Run("partial removal reports failure without rollback", func(t *testing.T) {
		f := newFixture(t)
		f.scheduleEvent(t, "e1", "mp-1")
		f.addWorkflow("wf-1", "e1", domain.WorkflowRunning, domain.MediaPackage{ID: "mp-1"})
		f.engine.stopErr = errors.New("engine hiccup")

		report, err := f.coord.RemoveEvent(ctx, "e1")
		require.NoError(t, err)

		assert.Equal(t, domain.OutcomeFailed, report.Aggregate())
		assert.Equal(t, domain.OutcomeRemoved, report.Scheduler)
		assert.Equal(t, domain.OutcomeFailed, report.Workflow)
		// The scheduler entry stays gone.
		assert.Empty(t, f.scheduler.events)
		assert.Empty(t, f.outbox.messages)
	})

	t.Run("permission failure dominates", func(t *testing.T) {
		f := newFixture(t)
		f.scheduleEvent(t, "e1", "mp-1")
		f.scheduler.removeErr = sharedDomain.ErrUnauthorized
		f.addWorkflow("wf-1", "e1", domain.WorkflowSucceeded, domain.MediaPackage{ID: "mp-1"})
		f.engine.stopErr = errors.New("engine hiccup")

		report, err := f.coord.RemoveEvent(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeUnauthorized, report.Aggregate())
	})
}
