package domain

import "time"

// WorkflowState is the lifecycle state of a workflow instance as seen by the
// resolver.
type WorkflowState string

const (
	WorkflowInstantiated WorkflowState = "instantiated"
	WorkflowRunning      WorkflowState = "running"
	WorkflowPaused       WorkflowState = "paused"
	WorkflowStopped      WorkflowState = "stopped"
	WorkflowSucceeded    WorkflowState = "succeeded"
	WorkflowFailed       WorkflowState = "failed"
)

// IsActive reports whether the workflow is still in flight.
func (s WorkflowState) IsActive() bool {
	switch s {
	case WorkflowInstantiated, WorkflowRunning, WorkflowPaused:
		return true
	}
	return false
}

// EventSnapshot is an immutable view of the lifecycle signals of one event,
// assembled from the three subsystems at resolution time. The authoritative
// source is always derived from these fields, never persisted.
type EventSnapshot struct {
	ID string

	// WorkflowID is empty when no workflow instance exists for the event.
	WorkflowID    string
	WorkflowState WorkflowState

	// SchedulingStatus is nil when the event is absent from the scheduling
	// store.
	SchedulingStatus *string
	RecordingStarted bool

	// ArchiveVersion is nil when the event was never archived.
	ArchiveVersion *int64
}

// HasWorkflow reports whether a workflow instance exists for the event.
func (e EventSnapshot) HasWorkflow() bool { return e.WorkflowID != "" }

// IsEmpty reports whether no subsystem knows the event at all.
func (e EventSnapshot) IsEmpty() bool {
	return !e.HasWorkflow() && e.SchedulingStatus == nil && e.ArchiveVersion == nil
}

// MetadataUpdate is a partial metadata change. Nil pointers are "no change"
// sentinels, mirroring the scheduling store's update contract.
type MetadataUpdate struct {
	Title      *string
	AgentID    *string
	Start      *time.Time
	End        *time.Time
	Presenters *[]string
}

// IsEmpty reports whether no field is set.
func (m MetadataUpdate) IsEmpty() bool {
	return m.Title == nil && m.AgentID == nil && m.Start == nil &&
		m.End == nil && m.Presenters == nil
}
