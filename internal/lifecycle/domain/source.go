package domain

// Source names the subsystem currently authoritative for an event's state.
type Source string

const (
	SourceWorkflow Source = "WORKFLOW"
	SourceArchive  Source = "ARCHIVE"
	SourceSchedule Source = "SCHEDULE"
)

// Reason names the rule that produced a resolution.
type Reason string

const (
	ReasonActiveWorkflow   Reason = "active_workflow"
	ReasonScheduled        Reason = "scheduled"
	ReasonArchived         Reason = "archived"
	ReasonTerminalWorkflow Reason = "terminal_workflow"

	// ReasonFallback marks the low-confidence default: no subsystem signal
	// matched, and the event is assumed to still belong to the scheduler.
	// Callers should log resolutions carrying this reason.
	ReasonFallback Reason = "fallback"
)

// Resolution is the outcome of resolving an event's authoritative source.
type Resolution struct {
	Source Source
	Reason Reason
}

// LowConfidence reports whether the resolution came from the fallback rule
// rather than a positive subsystem signal.
func (r Resolution) LowConfidence() bool { return r.Reason == ReasonFallback }

// ResolveSource derives the authoritative source for an event from its
// lifecycle snapshot. Rules are evaluated in strict priority order; the first
// match wins:
//
//  1. active workflow
//  2. scheduled and recording not started
//  3. archived
//  4. workflow in a terminal state
//  5. fallback to the scheduler
func ResolveSource(e EventSnapshot) Resolution {
	switch {
	case e.HasWorkflow() && e.WorkflowState.IsActive():
		return Resolution{Source: SourceWorkflow, Reason: ReasonActiveWorkflow}
	case e.SchedulingStatus != nil && !e.RecordingStarted:
		return Resolution{Source: SourceSchedule, Reason: ReasonScheduled}
	case e.ArchiveVersion != nil:
		return Resolution{Source: SourceArchive, Reason: ReasonArchived}
	case e.HasWorkflow():
		return Resolution{Source: SourceWorkflow, Reason: ReasonTerminalWorkflow}
	default:
		return Resolution{Source: SourceSchedule, Reason: ReasonFallback}
	}
}
