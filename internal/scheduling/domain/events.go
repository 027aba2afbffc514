package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
)

const (
	AggregateTypeTransaction = "SchedulerTransaction"
	AggregateTypeEvent       = "ScheduledEvent"

	RoutingKeyTransactionOpened     = "scheduling.transaction.opened"
	RoutingKeyTransactionCommitted  = "scheduling.transaction.committed"
	RoutingKeyTransactionRolledBack = "scheduling.transaction.rolledback"
	RoutingKeyEventScheduled        = "scheduling.event.scheduled"
	RoutingKeyEventUpdated          = "scheduling.event.updated"
	RoutingKeyEventRemoved          = "scheduling.event.removed"
)

// TransactionOpened is emitted when a source acquires a scheduling transaction.
type TransactionOpened struct {
	sharedDomain.BaseEvent
	Source string `json:"source"`
}

// NewTransactionOpened creates a TransactionOpened event.
func NewTransactionOpened(transactionID, source string) TransactionOpened {
	return TransactionOpened{
		BaseEvent: sharedDomain.NewBaseEvent(transactionID, AggregateTypeTransaction, RoutingKeyTransactionOpened),
		Source:    source,
	}
}

// TransactionCommitted is emitted when all pending events were persisted.
type TransactionCommitted struct {
	sharedDomain.BaseEvent
	Source     string `json:"source"`
	EventCount int    `json:"event_count"`
}

// NewTransactionCommitted creates a TransactionCommitted event.
func NewTransactionCommitted(transactionID, source string, eventCount int) TransactionCommitted {
	return TransactionCommitted{
		BaseEvent:  sharedDomain.NewBaseEvent(transactionID, AggregateTypeTransaction, RoutingKeyTransactionCommitted),
		Source:     source,
		EventCount: eventCount,
	}
}

// TransactionRolledBack is emitted when pending events were discarded.
type TransactionRolledBack struct {
	sharedDomain.BaseEvent
	Source string `json:"source"`
}

// NewTransactionRolledBack creates a TransactionRolledBack event.
func NewTransactionRolledBack(transactionID, source string) TransactionRolledBack {
	return TransactionRolledBack{
		BaseEvent: sharedDomain.NewBaseEvent(transactionID, AggregateTypeTransaction, RoutingKeyTransactionRolledBack),
		Source:    source,
	}
}

// EventScheduled is emitted when a recording window becomes committed on an
// agent.
type EventScheduled struct {
	sharedDomain.BaseEvent
	AgentID   string    `json:"agent_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Source    string    `json:"source"`
}

// NewEventScheduled creates an EventScheduled event.
func NewEventScheduled(event *ScheduledEvent) EventScheduled {
	return EventScheduled{
		BaseEvent: sharedDomain.NewBaseEvent(event.ID(), AggregateTypeEvent, RoutingKeyEventScheduled),
		AgentID:   event.AgentID(),
		StartTime: event.Period().Start(),
		EndTime:   event.Period().End(),
		Source:    event.Source(),
	}
}

// EventUpdated is emitted when a routed mutation lands on an event.
type EventUpdated struct {
	sharedDomain.BaseEvent
	Source string `json:"source"`
}

// NewEventUpdated creates an EventUpdated event. source names the subsystem
// the mutation was routed to.
func NewEventUpdated(eventID, source string) EventUpdated {
	return EventUpdated{
		BaseEvent: sharedDomain.NewBaseEvent(eventID, AggregateTypeEvent, RoutingKeyEventUpdated),
		Source:    source,
	}
}

// EventRemoved is emitted when an event leaves the scheduling store.
type EventRemoved struct {
	sharedDomain.BaseEvent
	AgentID string `json:"agent_id"`
}

// NewEventRemoved creates an EventRemoved event.
func NewEventRemoved(eventID, agentID string) EventRemoved {
	return EventRemoved{
		BaseEvent: sharedDomain.NewBaseEvent(eventID, AggregateTypeEvent, RoutingKeyEventRemoved),
		AgentID:   agentID,
	}
}
