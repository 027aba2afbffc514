package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/capstan/internal/scheduling/application/services"
	"github.com/felixgeelhaar/capstan/internal/scheduling/domain"
	"github.com/google/uuid"
)

// ScheduleEventCommand contains the data needed to schedule a single capture.
type ScheduleEventCommand struct {
	EventID      string
	AgentID      string
	Start        time.Time
	End          time.Time
	Presenters   []string
	MediaPackage string
	Source       string
}

// ScheduleEventResult contains the result of scheduling a capture.
type ScheduleEventResult struct {
	EventID string
	Period  domain.Period
}

// ScheduleEventHandler handles the ScheduleEventCommand.
type ScheduleEventHandler struct {
	manager *services.TransactionManager
}

// NewScheduleEventHandler creates a new ScheduleEventHandler.
func NewScheduleEventHandler(manager *services.TransactionManager) *ScheduleEventHandler {
	return &ScheduleEventHandler{manager: manager}
}

// Handle executes the ScheduleEventCommand. The event is conflict-checked and
// persisted directly, outside any explicit transaction.
func (h *ScheduleEventHandler) Handle(ctx context.Context, cmd ScheduleEventCommand) (*ScheduleEventResult, error) {
	period, err := domain.NewPeriod(cmd.Start, cmd.End)
	if err != nil {
		return nil, err
	}

	eventID := cmd.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	event, err := domain.NewScheduledEvent(eventID, cmd.AgentID, period,
		cmd.Presenters, cmd.MediaPackage, cmd.Source)
	if err != nil {
		return nil, err
	}

	if err := h.manager.ScheduleEvents(ctx, cmd.Source, []*domain.ScheduledEvent{event}); err != nil {
		return nil, err
	}

	return &ScheduleEventResult{EventID: event.ID(), Period: event.Period()}, nil
}
