package coordinator

import "errors"

// Domain errors for the coordinator package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoSections is returned when a refresh request names no sections.
	ErrNoSections = errors.New("coordinator: no sections requested")

	// ErrNoTargets is returned when a matrix or power command names no
	// target decoders.
	ErrNoTargets = errors.New("coordinator: no target devices")

	// ErrNotStarted is returned when an operation requires a running
	// coordinator.
	ErrNotStarted = errors.New("coordinator: not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("coordinator: already started")
)
