package domain

import "errors"

// Cross-cutting error classifications. Collaborating subsystems (scheduling
// store, workflow engine, archive) map their failures onto these so callers
// can classify outcomes with errors.Is regardless of the backend.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the caller is not permitted to act on the
	// resource. It always fails closed.
	ErrUnauthorized = errors.New("unauthorized")
)
