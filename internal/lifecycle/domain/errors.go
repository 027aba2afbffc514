package domain

import "errors"

var (
	// ErrWorkflowProcessing rejects mutations that cannot land while the
	// event's workflow is still in flight.
	ErrWorkflowProcessing = errors.New("workflow processing in progress")

	// ErrUnknownSource signals an internal inconsistency: the resolver
	// produced a source the coordinator has no route for.
	ErrUnknownSource = errors.New("unknown event source")

	// ErrCatalogNotFound signals a catalog removal that matched nothing.
	ErrCatalogNotFound = errors.New("catalog not found")
)
