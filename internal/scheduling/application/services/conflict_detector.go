package services

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
)

// ConflictDetector finds committed events on a capture agent whose recording
// windows overlap candidate periods. It is read-only; the commit path is
// responsible for serializing detection against concurrent persistence.
type ConflictDetector struct {
	store domain.SchedulingStore
}

// NewConflictDetector creates a new ConflictDetector.
func NewConflictDetector(store domain.SchedulingStore) *ConflictDetector {
	return &ConflictDetector{store: store}
}

// FindConflicts returns every committed event on the agent whose period
// overlaps any candidate period, ordered by start time with ties broken by
// event id. excludeEventID, when non-empty, omits that event from the scan so
// an update does not conflict with itself.
func (d *ConflictDetector) FindConflicts(ctx context.Context, agentID string, candidates []domain.Period, excludeEventID string) (domain.ConflictSet, error) {
	if agentID == "" {
		return nil, domain.ErrEmptyAgentID
	}

	committed, err := d.store.ListEventsForAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list events for agent %s: %w", agentID, err)
	}

	var conflicts []*domain.ScheduledEvent
	for _, event := range committed {
		if excludeEventID != "" && event.ID() == excludeEventID {
			continue
		}
		for _, candidate := range candidates {
			if event.Period().Overlaps(candidate) {
				conflicts = append(conflicts, event)
				break
			}
		}
	}

	return domain.SortConflicts(conflicts), nil
}
