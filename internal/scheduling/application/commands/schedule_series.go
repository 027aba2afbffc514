package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/application/services"
	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	"github.com/google/uuid"
)

// ScheduleSeriesCommand expands a recurrence rule into concrete capture
// events on one agent and schedules them as a batch.
type ScheduleSeriesCommand struct {
	AgentID      string
	Rule         string
	WindowStart  time.Time
	WindowEnd    time.Time
	Duration     time.Duration
	Timezone     string
	Presenters   []string
	MediaPackage string
	Source       string
}

// ScheduleSeriesResult contains the expanded and persisted instances.
type ScheduleSeriesResult struct {
	EventIDs []string
	Periods  []domain.Period
}

// ScheduleSeriesHandler handles the ScheduleSeriesCommand.
type ScheduleSeriesHandler struct {
	manager *services.TransactionManager
}

// NewScheduleSeriesHandler creates a new ScheduleSeriesHandler.
func NewScheduleSeriesHandler(manager *services.TransactionManager) *ScheduleSeriesHandler {
	return &ScheduleSeriesHandler{manager: manager}
}

// Handle expands the rule inside the scheduling window and persists every
// instance, all-or-nothing: one conflicting instance fails the whole batch.
func (h *ScheduleSeriesHandler) Handle(ctx context.Context, cmd ScheduleSeriesCommand) (*ScheduleSeriesResult, error) {
	pattern, err := domain.NewRecurrencePattern(cmd.Rule, cmd.WindowStart, cmd.WindowEnd, cmd.Duration, cmd.Timezone)
	if err != nil {
		return nil, err
	}

	periods := pattern.Periods()
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: rule yields no instances inside the window", domain.ErrInvalidRecurrenceRule)
	}

	events := make([]*domain.ScheduledEvent, 0, len(periods))
	for _, period := range periods {
		event, err := domain.NewScheduledEvent(uuid.NewString(), cmd.AgentID, period,
			cmd.Presenters, cmd.MediaPackage, cmd.Source)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := h.manager.ScheduleEvents(ctx, cmd.Source, events); err != nil {
		return nil, err
	}

	result := &ScheduleSeriesResult{
		EventIDs: make([]string, 0, len(events)),
		Periods:  periods,
	}
	for _, event := range events {
		result.EventIDs = append(result.EventIDs, event.ID())
	}
	return result, nil
}
