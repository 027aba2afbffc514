package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/capstan/internal/shared/domain"
)

// Scheduling status values for a committed event.
const (
	StatusScheduled = "scheduled"
	StatusRecording = "recording"
)

var (
	ErrEmptyEventID = errors.New("event id must not be empty")
	ErrEmptyAgentID = errors.New("capture agent id must not be empty")
)

// ScheduledEvent is a committed scheduling-store entry: a recording window
// reserved on a capture agent.
type ScheduledEvent struct {
	sharedDomain.BaseEntity
	agentID          string
	period           Period
	presenters       []string
	mediaPackage     string
	source           string
	status           string
	recordingStarted bool
}

// NewScheduledEvent creates a scheduled event. The id is the externally
// assigned media package identifier.
func NewScheduledEvent(id, agentID string, period Period, presenters []string, mediaPackage, source string) (*ScheduledEvent, error) {
	if id == "" {
		return nil, ErrEmptyEventID
	}
	if agentID == "" {
		return nil, ErrEmptyAgentID
	}
	if period.IsZero() {
		return nil, ErrInvalidTimeRange
	}

	return &ScheduledEvent{
		BaseEntity:   sharedDomain.NewBaseEntity(id),
		agentID:      agentID,
		period:       period,
		presenters:   append([]string(nil), presenters...),
		mediaPackage: mediaPackage,
		source:       source,
		status:       StatusScheduled,
	}, nil
}

func (e *ScheduledEvent) AgentID() string       { return e.agentID }
func (e *ScheduledEvent) Period() Period        { return e.period }
func (e *ScheduledEvent) MediaPackage() string  { return e.mediaPackage }
func (e *ScheduledEvent) Source() string        { return e.source }
func (e *ScheduledEvent) Status() string        { return e.status }
func (e *ScheduledEvent) RecordingStarted() bool { return e.recordingStarted }

// Presenters returns a copy of the presenter identifiers.
func (e *ScheduledEvent) Presenters() []string {
	return append([]string(nil), e.presenters...)
}

// StartRecording marks the capture as started on the agent.
func (e *ScheduledEvent) StartRecording() {
	e.recordingStarted = true
	e.status = StatusRecording
	e.Touch()
}

// Apply merges partial changes into the event. Nil fields mean "no change".
func (e *ScheduledEvent) Apply(changes EventChanges) error {
	if changes.Period != nil {
		if changes.Period.IsZero() {
			return ErrInvalidTimeRange
		}
		e.period = *changes.Period
	}
	if changes.AgentID != nil {
		if *changes.AgentID == "" {
			return ErrEmptyAgentID
		}
		e.agentID = *changes.AgentID
	}
	if changes.Presenters != nil {
		e.presenters = append([]string(nil), *changes.Presenters...)
	}
	if changes.MediaPackage != nil {
		e.mediaPackage = *changes.MediaPackage
	}
	if changes.Status != nil {
		e.status = *changes.Status
	}
	e.Touch()
	return nil
}

// EventChanges is a partial update of a scheduled event. Nil pointers are
// "no change" sentinels, so callers only carry the fields they touch.
type EventChanges struct {
	Period       *Period
	AgentID      *string
	Presenters   *[]string
	MediaPackage *string
	Status       *string
}

// IsEmpty reports whether no field is set.
func (c EventChanges) IsEmpty() bool {
	return c.Period == nil && c.AgentID == nil && c.Presenters == nil &&
		c.MediaPackage == nil && c.Status == nil
}

// RehydrateScheduledEvent recreates a scheduled event from persisted state.
func RehydrateScheduledEvent(
	id, agentID string,
	period Period,
	presenters []string,
	mediaPackage, source, status string,
	recordingStarted bool,
	createdAt, updatedAt time.Time,
) *ScheduledEvent {
	return &ScheduledEvent{
		BaseEntity:       sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		agentID:          agentID,
		period:           period,
		presenters:       presenters,
		mediaPackage:     mediaPackage,
		source:           source,
		status:           status,
		recordingStarted: recordingStarted,
	}
}
