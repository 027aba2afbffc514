package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	sharedApplication "github.com/felixgeelhaar/capstan/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	"github.com/felixgeelhaar/capstan/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// AddEventParams describes a candidate event staged into a transaction.
// EventID is optional; a fresh id is generated when empty.
type AddEventParams struct {
	EventID      string
	AgentID      string
	Period       domain.Period
	Presenters   []string
	MediaPackage string
}

// TransactionManager drives the scheduling transaction protocol: open a
// source-scoped transaction, stage candidate events with conflict screening,
// then commit or roll back. Commits re-validate every staged event against
// committed state under a process-wide mutex so two concurrent commits cannot
// both pass detection and persist overlapping events.
type TransactionManager struct {
	transactions domain.TransactionRepository
	store        domain.SchedulingStore
	locks        domain.SourceLock
	detector     *ConflictDetector
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	origin       string

	commitMu sync.Mutex
}

// NewTransactionManager creates a new TransactionManager.
func NewTransactionManager(
	transactions domain.TransactionRepository,
	store domain.SchedulingStore,
	locks domain.SourceLock,
	detector *ConflictDetector,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	origin string,
) *TransactionManager {
	return &TransactionManager{
		transactions: transactions,
		store:        store,
		locks:        locks,
		detector:     detector,
		outboxRepo:   outboxRepo,
		uow:          uow,
		origin:       origin,
	}
}

// Open starts a transaction for the given source. At most one open
// transaction may exist per source; a second attempt fails with
// ErrTransactionConflict while the first is still open.
func (m *TransactionManager) Open(ctx context.Context, source string) (*domain.Transaction, error) {
	tx, err := domain.NewTransaction(source)
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
		if err := m.locks.Acquire(txCtx, source, tx.ID()); err != nil {
			return err
		}
		if err := m.transactions.Save(txCtx, tx); err != nil {
			return err
		}
		return m.drainEvents(txCtx, tx)
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

// AddEvent screens a candidate event against committed events and the
// transaction's own pending events, then stages it. A detected overlap
// returns a *domain.ConflictError and leaves the transaction unchanged.
func (m *TransactionManager) AddEvent(ctx context.Context, transactionID string, params AddEventParams) (*domain.ScheduledEvent, error) {
	tx, err := m.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsOpen() {
		return nil, fmt.Errorf("%w: state %s", domain.ErrTransactionNotOpen, tx.State())
	}

	eventID := params.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	conflicts, err := m.screen(ctx, tx, params.AgentID, params.Period, eventID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &domain.ConflictError{
			AgentID:         params.AgentID,
			CandidatePeriod: params.Period,
			Conflicts:       conflicts,
		}
	}

	event, err := domain.NewScheduledEvent(eventID, params.AgentID, params.Period,
		params.Presenters, params.MediaPackage, tx.Source())
	if err != nil {
		return nil, err
	}
	if err := tx.Stage(event); err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
		// Re-acquiring renews the lock's expiry on lock backends that
		// attach one, and fails fast if the source changed hands.
		if err := m.locks.Acquire(txCtx, tx.Source(), tx.ID()); err != nil {
			return err
		}
		return m.transactions.Save(txCtx, tx)
	})
	if err != nil {
		return nil, err
	}

	return event, nil
}

// Commit re-validates every pending event against committed state and, if all
// are still clear, persists them and releases the source lock in one unit of
// work. A conflict detected at commit time rolls the transaction back and
// returns the *domain.ConflictError naming the offending events.
func (m *TransactionManager) Commit(ctx context.Context, transactionID string) error {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	tx, err := m.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if !tx.IsOpen() {
		return fmt.Errorf("%w: state %s", domain.ErrTransactionNotOpen, tx.State())
	}

	for _, pending := range tx.Pending() {
		conflicts, err := m.detector.FindConflicts(ctx, pending.AgentID(),
			[]domain.Period{pending.Period()}, pending.ID())
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			conflictErr := &domain.ConflictError{
				AgentID:         pending.AgentID(),
				CandidatePeriod: pending.Period(),
				Conflicts:       conflicts,
			}
			if rbErr := m.rollback(ctx, tx); rbErr != nil {
				return errors.Join(conflictErr, rbErr)
			}
			return fmt.Errorf("commit aborted: %w", conflictErr)
		}
	}

	pending := tx.Pending()
	if err := tx.MarkCommitted(); err != nil {
		return err
	}

	return sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
		if len(pending) > 0 {
			if err := m.store.PersistEvents(txCtx, pending); err != nil {
				return err
			}
		}
		if err := m.transactions.Save(txCtx, tx); err != nil {
			return err
		}
		if err := m.locks.Release(txCtx, tx.Source(), tx.ID()); err != nil {
			return err
		}
		return m.drainEvents(txCtx, tx)
	})
}

// Rollback discards the transaction's pending events and releases its source
// lock. Rolling back an already rolled back transaction is a no-op.
func (m *TransactionManager) Rollback(ctx context.Context, transactionID string) error {
	tx, err := m.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if tx.State() == domain.TransactionStateRolledBack {
		return nil
	}
	return m.rollback(ctx, tx)
}

// Get returns a transaction by id.
func (m *TransactionManager) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return m.transactions.FindByID(ctx, transactionID)
}

func (m *TransactionManager) rollback(ctx context.Context, tx *domain.Transaction) error {
	if err := tx.MarkRolledBack(); err != nil {
		return err
	}
	return sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
		if err := m.transactions.Save(txCtx, tx); err != nil {
			return err
		}
		if err := m.locks.Release(txCtx, tx.Source(), tx.ID()); err != nil {
			return err
		}
		return m.drainEvents(txCtx, tx)
	})
}

// screen checks a candidate period against committed events and the
// transaction's own pending events on the same agent.
func (m *TransactionManager) screen(ctx context.Context, tx *domain.Transaction, agentID string, period domain.Period, excludeEventID string) (domain.ConflictSet, error) {
	conflicts, err := m.detector.FindConflicts(ctx, agentID, []domain.Period{period}, excludeEventID)
	if err != nil {
		return nil, err
	}
	for _, pending := range tx.Pending() {
		if pending.ID() == excludeEventID || pending.AgentID() != agentID {
			continue
		}
		if pending.Period().Overlaps(period) {
			conflicts = append(conflicts, pending)
		}
	}
	return domain.SortConflicts(conflicts), nil
}

// drainEvents saves the aggregate's domain events to the outbox and clears
// them.
func (m *TransactionManager) drainEvents(ctx context.Context, tx *domain.Transaction) error {
	events := tx.DomainEvents()
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(m.origin))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := m.outboxRepo.SaveBatch(ctx, msgs); err != nil {
		return err
	}
	tx.ClearDomainEvents()
	return nil
}

// emit writes standalone domain events to the outbox.
func (m *TransactionManager) emit(ctx context.Context, events []sharedDomain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(m.origin))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	return m.outboxRepo.SaveBatch(ctx, msgs)
}

// ScheduleEvents persists events directly, outside an explicit transaction,
// after a final conflict re-check under the commit mutex. A non-empty source
// with an open transaction is rejected with ErrTransactionConflict so direct
// writes cannot race a staged batch for the same source.
func (m *TransactionManager) ScheduleEvents(ctx context.Context, source string, events []*domain.ScheduledEvent) error {
	if len(events) == 0 {
		return nil
	}

	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	if source != "" {
		open, err := m.transactions.FindOpenBySource(ctx, source)
		if err != nil && !errors.Is(err, sharedDomain.ErrNotFound) {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: source %s has open transaction %s",
				domain.ErrTransactionConflict, source, open.ID())
		}
	}

	for i, event := range events {
		conflicts, err := m.detector.FindConflicts(ctx, event.AgentID(),
			[]domain.Period{event.Period()}, event.ID())
		if err != nil {
			return err
		}
		for _, other := range events[:i] {
			if other.AgentID() == event.AgentID() && other.Period().Overlaps(event.Period()) {
				conflicts = append(conflicts, other)
			}
		}
		if len(conflicts) > 0 {
			return &domain.ConflictError{
				AgentID:         event.AgentID(),
				CandidatePeriod: event.Period(),
				Conflicts:       domain.SortConflicts(conflicts),
			}
		}
	}

	return sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
		if err := m.store.PersistEvents(txCtx, events); err != nil {
			return err
		}
		scheduled := make([]sharedDomain.DomainEvent, 0, len(events))
		for _, event := range events {
			scheduled = append(scheduled, domain.NewEventScheduled(event))
		}
		return m.emit(txCtx, scheduled)
	})
}
