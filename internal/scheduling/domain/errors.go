package domain

import "errors"

var (
	// ErrInvalidTimeRange indicates an end time that is not after its start.
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	// ErrInvalidRecurrenceRule indicates a malformed or unsupported
	// recurrence rule. No instances are produced for such rules.
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")
	// ErrScheduleConflict indicates overlapping recording windows on a
	// capture agent.
	ErrScheduleConflict = errors.New("conflicting scheduled events")
	// ErrTransactionConflict indicates an open transaction already holds the
	// per-source lock.
	ErrTransactionConflict = errors.New("an open transaction already exists for source")
	// ErrTransactionNotOpen indicates an operation on a committed or rolled
	// back transaction.
	ErrTransactionNotOpen = errors.New("transaction is not open")
	// ErrTransactionNotFound indicates an unknown transaction id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicatePendingEvent indicates the same event id staged twice in
	// one transaction.
	ErrDuplicatePendingEvent = errors.New("event already staged in this transaction")
)
