package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ConflictSet is the transient result of conflict detection: committed events
// on one agent whose periods intersect a candidate period. It is ordered by
// period start, ties broken by event id, so error messages and assertions are
// reproducible.
type ConflictSet []*ScheduledEvent

// SortConflicts orders a conflict set deterministically.
func SortConflicts(events []*ScheduledEvent) ConflictSet {
	sorted := append(ConflictSet(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		si, sj := sorted[i].Period().Start(), sorted[j].Period().Start()
		if si.Equal(sj) {
			return sorted[i].ID() < sorted[j].ID()
		}
		return si.Before(sj)
	})
	return sorted
}

// IDs returns the event identifiers in set order.
func (s ConflictSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for _, e := range s {
		ids = append(ids, e.ID())
	}
	return ids
}

// ConflictError reports overlapping recording windows on a capture agent.
// It unwraps to ErrScheduleConflict.
type ConflictError struct {
	AgentID         string
	CandidatePeriod Period
	Conflicts       ConflictSet
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("agent %s: period %s conflicts with events [%s]",
		e.AgentID, e.CandidatePeriod, strings.Join(e.Conflicts.IDs(), ", "))
}

func (e *ConflictError) Unwrap() error { return ErrScheduleConflict }
