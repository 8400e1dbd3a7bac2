package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrTransport) {
//	    // retry with backoff
//	}
var (
	// ErrTransport is returned for connection or timeout failures talking
	// to the controller. Wraps the underlying cause.
	ErrTransport = errors.New("device: transport failure")

	// ErrDeviceUnreachable is returned inside a StatusResult when a single
	// endpoint could not be queried. The batch itself still succeeds.
	ErrDeviceUnreachable = errors.New("device: endpoint unreachable")

	// ErrDeviceNotFound is returned when a named endpoint is not part of
	// the current fleet inventory.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidRole is returned when an operation targets an endpoint of
	// the wrong role (e.g. routing to an encoder).
	ErrInvalidRole = errors.New("device: invalid role for operation")

	// ErrInvalidPowerState is returned when a power command names a state
	// other than on/off.
	ErrInvalidPowerState = errors.New("device: invalid power state")
)
