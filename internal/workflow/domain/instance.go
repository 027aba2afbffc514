package domain

import (
	"context"

	lifecycleDomain "github.com/felixgeelhaar/capstan/internal/lifecycle/domain"
)

// Instance is a workflow engine instance processing one event's media.
type Instance struct {
	ID           string
	EventID      string
	State        lifecycleDomain.WorkflowState
	MediaPackage lifecycleDomain.MediaPackage
}

// IsActive reports whether the instance is still in flight.
func (i *Instance) IsActive() bool { return i.State.IsActive() }

// Engine is the workflow engine collaborator. Implementations map a missing
// workflow onto shared domain.ErrNotFound and permission failures onto shared
// domain.ErrUnauthorized.
type Engine interface {
	// FindWorkflow returns the workflow instance for an event, preferring an
	// active one over terminal ones.
	FindWorkflow(ctx context.Context, eventID string) (*Instance, error)

	// ReplaceMediaPackageAndPersist swaps the instance's media package and
	// persists the instance.
	ReplaceMediaPackageAndPersist(ctx context.Context, workflowID string, mp lifecycleDomain.MediaPackage) error

	// StopAndRemove stops the instance and deletes it from the engine.
	StopAndRemove(ctx context.Context, workflowID string) error
}
