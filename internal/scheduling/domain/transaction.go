package domain

import (
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
	"github.com/google/uuid"
)

// TransactionState is the lifecycle state of a scheduling transaction.
type TransactionState string

const (
	// TransactionOpen accepts staged events.
	TransactionOpen TransactionState = "open"
	// TransactionStateCommitted is terminal; all staged events were persisted.
	TransactionStateCommitted TransactionState = "committed"
	// TransactionStateRolledBack is terminal; staged events were discarded.
	TransactionStateRolledBack TransactionState = "rolled_back"
)

var errTransactionTerminal = errors.New("transaction already committed")

// Transaction is a source-scoped staging area for candidate event additions.
// It accumulates pending events under one logical operation and transitions
// exactly once to committed or rolled back.
type Transaction struct {
	sharedDomain.BaseAggregateRoot
	source  string
	state   TransactionState
	pending []*ScheduledEvent
}

// NewTransaction opens a transaction for the given source label.
func NewTransaction(source string) (*Transaction, error) {
	if source == "" {
		return nil, errors.New("scheduling source must not be empty")
	}

	t := &Transaction{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(uuid.NewString()),
		source:            source,
		state:             TransactionOpen,
	}
	t.AddDomainEvent(NewTransactionOpened(t.ID(), source))
	return t, nil
}

func (t *Transaction) Source() string          { return t.source }
func (t *Transaction) State() TransactionState { return t.state }

// IsOpen reports whether the transaction still accepts staged events.
func (t *Transaction) IsOpen() bool { return t.state == TransactionOpen }

// Pending returns the staged events in staging order.
func (t *Transaction) Pending() []*ScheduledEvent {
	return append([]*ScheduledEvent(nil), t.pending...)
}

// Stage adds a candidate event to the transaction. The caller is responsible
// for conflict screening; the aggregate only guards its own invariants: the
// transaction must be open and an event id may be staged at most once.
func (t *Transaction) Stage(event *ScheduledEvent) error {
	if t.state != TransactionOpen {
		return fmt.Errorf("%w: state %s", ErrTransactionNotOpen, t.state)
	}
	for _, p := range t.pending {
		if p.ID() == event.ID() {
			return fmt.Errorf("%w: %s", ErrDuplicatePendingEvent, event.ID())
		}
	}
	t.pending = append(t.pending, event)
	t.Touch()
	return nil
}

// MarkCommitted transitions the transaction to its committed terminal state
// and emits scheduling events for every pending event.
func (t *Transaction) MarkCommitted() error {
	if t.state != TransactionOpen {
		return fmt.Errorf("%w: cannot commit from state %s", ErrTransactionNotOpen, t.state)
	}
	t.state = TransactionStateCommitted
	t.Touch()
	for _, e := range t.pending {
		t.AddDomainEvent(NewEventScheduled(e))
	}
	t.AddDomainEvent(NewTransactionCommitted(t.ID(), t.source, len(t.pending)))
	return nil
}

// MarkRolledBack transitions the transaction to its rolled back terminal
// state and discards pending events. Rolling back an already rolled back
// transaction is a no-op; rolling back a committed one is an error.
func (t *Transaction) MarkRolledBack() error {
	switch t.state {
	case TransactionStateRolledBack:
		return nil
	case TransactionStateCommitted:
		return fmt.Errorf("%w: cannot roll back", errTransactionTerminal)
	}
	t.state = TransactionStateRolledBack
	t.pending = nil
	t.Touch()
	t.AddDomainEvent(NewTransactionRolledBack(t.ID(), t.source))
	return nil
}

// RehydrateTransaction recreates a transaction from persisted state.
func RehydrateTransaction(
	id, source string,
	state TransactionState,
	pending []*ScheduledEvent,
	createdAt, updatedAt time.Time,
) *Transaction {
	return &Transaction{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)),
		source:  source,
		state:   state,
		pending: pending,
	}
}
