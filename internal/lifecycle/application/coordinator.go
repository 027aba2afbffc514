package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	archiveDomain "github.com/felixgeelhaar/capstan/internal/archive/domain"
	commentsDomain "github.com/felixgeelhaar/capstan/internal/comments/domain"
	"github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
	schedDomain "github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/capstan/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/outbox"
	workflowDomain "github.com/felixgeelhaar/capstan/internal/workflow/domain"
)

// MutationCoordinator routes event mutations to whichever subsystem is
// currently authoritative for the event, and fans deletions out to all three.
// It never persists the resolved source; ownership is re-derived on every
// call from a fresh snapshot.
type MutationCoordinator struct {
	scheduler  schedDomain.SchedulingStore
	workflows  workflowDomain.Engine
	archive    archiveDomain.Store
	comments   commentsDomain.Store
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	origin     string
	logger     *slog.Logger
}

// NewMutationCoordinator creates a new MutationCoordinator.
func NewMutationCoordinator(
	scheduler schedDomain.SchedulingStore,
	workflows workflowDomain.Engine,
	archive archiveDomain.Store,
	comments commentsDomain.Store,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	origin string,
	logger *slog.Logger,
) *MutationCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &MutationCoordinator{
		scheduler:  scheduler,
		workflows:  workflows,
		archive:    archive,
		comments:   comments,
		outboxRepo: outboxRepo,
		uow:        uow,
		origin:     origin,
		logger:     logger,
	}
}

// Snapshot assembles the lifecycle signals of an event from the three
// subsystems.
func (c *MutationCoordinator) Snapshot(ctx context.Context, eventID string) (domain.EventSnapshot, error) {
	snapshot := domain.EventSnapshot{ID: eventID}

	wf, err := c.workflows.FindWorkflow(ctx, eventID)
	switch {
	case err == nil:
		snapshot.WorkflowID = wf.ID
		snapshot.WorkflowState = wf.State
	case !errors.Is(err, sharedDomain.ErrNotFound):
		return domain.EventSnapshot{}, fmt.Errorf("query workflow engine: %w", err)
	}

	event, err := c.scheduler.GetEvent(ctx, eventID)
	switch {
	case err == nil:
		status := event.Status()
		snapshot.SchedulingStatus = &status
		snapshot.RecordingStarted = event.RecordingStarted()
	case !errors.Is(err, sharedDomain.ErrNotFound):
		return domain.EventSnapshot{}, fmt.Errorf("query scheduling store: %w", err)
	}

	latest, err := c.archive.Latest(ctx, eventID)
	switch {
	case err == nil:
		version := latest.Version
		snapshot.ArchiveVersion = &version
	case !errors.Is(err, sharedDomain.ErrNotFound):
		return domain.EventSnapshot{}, fmt.Errorf("query archive: %w", err)
	}

	return snapshot, nil
}

// ResolveSource derives the authoritative source for an event. Fallback
// resolutions are logged; they classify events no subsystem has a positive
// signal for.
func (c *MutationCoordinator) ResolveSource(ctx context.Context, eventID string) (domain.Resolution, error) {
	snapshot, err := c.Snapshot(ctx, eventID)
	if err != nil {
		return domain.Resolution{}, err
	}

	resolution := domain.ResolveSource(snapshot)
	if resolution.LowConfidence() {
		c.logger.WarnContext(ctx, "event source resolved by fallback rule",
			slog.String("event_id", eventID),
			slog.String("source", string(resolution.Source)))
	}
	return resolution, nil
}

// UpdateMetadata applies a partial metadata change to the event's
// authoritative subsystem.
func (c *MutationCoordinator) UpdateMetadata(ctx context.Context, eventID string, update domain.MetadataUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	resolution, err := c.ResolveSource(ctx, eventID)
	if err != nil {
		return err
	}

	switch resolution.Source {
	case domain.SourceWorkflow:
		err = c.mutateWorkflow(ctx, eventID, func(mp domain.MediaPackage) (domain.MediaPackage, error) {
			return mp.WithMetadata(update), nil
		})
	case domain.SourceArchive:
		err = c.mutateArchive(ctx, eventID, func(mp domain.MediaPackage) (domain.MediaPackage, error) {
			return mp.WithMetadata(update), nil
		})
	case domain.SourceSchedule:
		err = c.updateScheduled(ctx, eventID, update)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownSource, resolution.Source)
	}
	if err != nil {
		return err
	}

	return c.emitUpdated(ctx, eventID, resolution.Source)
}

// UpdateACL replaces the event's access control list. Events owned by a
// workflow reject the change: a completed ACL would have to be republished,
// and an in-flight one races the engine.
func (c *MutationCoordinator) UpdateACL(ctx context.Context, eventID string, acl domain.ACL) error {
	resolution, err := c.ResolveSource(ctx, eventID)
	if err != nil {
		return err
	}

	switch resolution.Source {
	case domain.SourceWorkflow:
		return fmt.Errorf("event %s: %w", eventID, domain.ErrWorkflowProcessing)
	case domain.SourceArchive:
		err = c.mutateArchive(ctx, eventID, func(mp domain.MediaPackage) (domain.MediaPackage, error) {
			return mp.WithACL(acl), nil
		})
	case domain.SourceSchedule:
		err = c.mutateScheduledMediaPackage(ctx, eventID, func(mp domain.MediaPackage) (domain.MediaPackage, error) {
			return mp.WithACL(acl), nil
		})
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownSource, resolution.Source)
	}
	if err != nil {
		return err
	}

	return c.emitUpdated(ctx, eventID, resolution.Source)
}

// RemoveCatalogByFlavor strips every catalog of the given flavor from the
// event's media package in its authoritative subsystem.
func (c *MutationCoordinator) RemoveCatalogByFlavor(ctx context.Context, eventID, flavor string) error {
	resolution, err := c.ResolveSource(ctx, eventID)
	if err != nil {
		return err
	}

	strip := func(mp domain.MediaPackage) (domain.MediaPackage, error) {
		trimmed, removed := mp.WithoutCatalog(flavor)
		if !removed {
			return domain.MediaPackage{}, fmt.Errorf("flavor %s on event %s: %w",
				flavor, eventID, domain.ErrCatalogNotFound)
		}
		return trimmed, nil
	}

	switch resolution.Source {
	case domain.SourceWorkflow:
		err = c.mutateWorkflow(ctx, eventID, strip)
	case domain.SourceArchive:
		err = c.mutateArchive(ctx, eventID, strip)
	case domain.SourceSchedule:
		err = c.mutateScheduledMediaPackage(ctx, eventID, strip)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownSource, resolution.Source)
	}
	if err != nil {
		return err
	}

	return c.emitUpdated(ctx, eventID, resolution.Source)
}

// RemoveEvent deletes the event from all three subsystems unconditionally: an
// event can leave residue in more than one during a lifecycle transition. The
// three removals run concurrently; partial removals are never rolled back.
// The comments store is cleaned up last, best-effort.
func (c *MutationCoordinator) RemoveEvent(ctx context.Context, eventID string) (domain.RemovalReport, error) {
	// Capture the agent id before the scheduler entry disappears.
	agentID := ""
	if event, err := c.scheduler.GetEvent(ctx, eventID); err == nil {
		agentID = event.AgentID()
	}

	var report domain.RemovalReport
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		report.Scheduler = domain.ClassifyOutcome(c.scheduler.RemoveEvent(ctx, eventID))
	}()
	go func() {
		defer wg.Done()
		report.Workflow = domain.ClassifyOutcome(c.removeWorkflow(ctx, eventID))
	}()
	go func() {
		defer wg.Done()
		report.Archive = domain.ClassifyOutcome(c.archive.DeleteAll(ctx, eventID))
	}()
	wg.Wait()

	overall := report.Aggregate()
	c.logger.InfoContext(ctx, "event removal fan-out completed",
		slog.String("event_id", eventID),
		slog.String("scheduler", string(report.Scheduler)),
		slog.String("workflow", string(report.Workflow)),
		slog.String("archive", string(report.Archive)),
		slog.String("overall", string(overall)))

	// Comments go last, after the primary subsystems, and never change the
	// outcome.
	if err := c.comments.DeleteComments(ctx, eventID); err != nil {
		c.logger.WarnContext(ctx, "failed to delete event comments",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	}

	if overall == domain.OutcomeRemoved {
		if err := c.emit(ctx, schedDomain.NewEventRemoved(eventID, agentID)); err != nil {
			c.logger.WarnContext(ctx, "failed to record removal event",
				slog.String("event_id", eventID),
				slog.String("error", err.Error()))
		}
	}

	return report, nil
}

func (c *MutationCoordinator) removeWorkflow(ctx context.Context, eventID string) error {
	wf, err := c.workflows.FindWorkflow(ctx, eventID)
	if err != nil {
		return err
	}
	return c.workflows.StopAndRemove(ctx, wf.ID)
}

func (c *MutationCoordinator) mutateWorkflow(ctx context.Context, eventID string, mutate func(domain.MediaPackage) (domain.MediaPackage, error)) error {
	wf, err := c.workflows.FindWorkflow(ctx, eventID)
	if err != nil {
		return err
	}
	mp, err := mutate(wf.MediaPackage)
	if err != nil {
		return err
	}
	return c.workflows.ReplaceMediaPackageAndPersist(ctx, wf.ID, mp)
}

// mutateArchive applies the mutation to the latest snapshot's media package
// and appends the result as a new version. Previous versions stay untouched.
func (c *MutationCoordinator) mutateArchive(ctx context.Context, eventID string, mutate func(domain.MediaPackage) (domain.MediaPackage, error)) error {
	latest, err := c.archive.Latest(ctx, eventID)
	if err != nil {
		return err
	}
	mp, err := mutate(latest.MediaPackage)
	if err != nil {
		return err
	}
	_, err = c.archive.TakeSnapshot(ctx, eventID, mp)
	return err
}

// updateScheduled translates a metadata update into a partial scheduling
// store update, carrying only the changed fields.
func (c *MutationCoordinator) updateScheduled(ctx context.Context, eventID string, update domain.MetadataUpdate) error {
	event, err := c.scheduler.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	changes := schedDomain.EventChanges{
		AgentID:    update.AgentID,
		Presenters: update.Presenters,
	}

	if update.Start != nil || update.End != nil {
		start := event.Period().Start()
		end := event.Period().End()
		if update.Start != nil {
			start = *update.Start
		}
		if update.End != nil {
			end = *update.End
		}
		period, err := schedDomain.NewPeriod(start, end)
		if err != nil {
			return err
		}
		changes.Period = &period
	}

	if update.Title != nil || update.Presenters != nil {
		mp := c.parseMediaPackage(event)
		encoded, err := mp.WithMetadata(update).Encode()
		if err != nil {
			return err
		}
		serialized := string(encoded)
		changes.MediaPackage = &serialized
	}

	return c.scheduler.UpdateEvent(ctx, eventID, changes)
}

// mutateScheduledMediaPackage rewrites the media package carried by the
// scheduling store entry.
func (c *MutationCoordinator) mutateScheduledMediaPackage(ctx context.Context, eventID string, mutate func(domain.MediaPackage) (domain.MediaPackage, error)) error {
	event, err := c.scheduler.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	mp, err := mutate(c.parseMediaPackage(event))
	if err != nil {
		return err
	}
	encoded, err := mp.Encode()
	if err != nil {
		return err
	}

	serialized := string(encoded)
	return c.scheduler.UpdateEvent(ctx, eventID, schedDomain.EventChanges{MediaPackage: &serialized})
}

// parseMediaPackage decodes the event's stored media package. A bare opaque
// reference is promoted to a media package carrying only its id.
func (c *MutationCoordinator) parseMediaPackage(event *schedDomain.ScheduledEvent) domain.MediaPackage {
	mp, err := domain.ParseMediaPackage([]byte(event.MediaPackage()))
	if err != nil {
		return domain.MediaPackage{ID: event.MediaPackage()}
	}
	return mp
}

func (c *MutationCoordinator) emitUpdated(ctx context.Context, eventID string, source domain.Source) error {
	return c.emit(ctx, schedDomain.NewEventUpdated(eventID, string(source)))
}

func (c *MutationCoordinator) emit(ctx context.Context, event sharedDomain.DomainEvent) error {
	events := []sharedDomain.DomainEvent{event}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(c.origin))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	return sharedApplication.WithUnitOfWork(ctx, c.uow, func(txCtx context.Context) error {
		return c.outboxRepo.SaveBatch(txCtx, msgs)
	})
}
