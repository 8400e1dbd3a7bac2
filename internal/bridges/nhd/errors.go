package nhd

import "errors"

// Domain errors for the nhd package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when the broker connection is down.
	ErrNotConnected = errors.New("nhd: broker not connected")

	// ErrNotStarted is returned when a request is made before Start.
	ErrNotStarted = errors.New("nhd: client not started")

	// ErrBridgeTimeout is returned when the bridge does not reply within
	// the request timeout.
	ErrBridgeTimeout = errors.New("nhd: bridge reply timeout")

	// ErrMalformedPayload is returned when a bridge message cannot be
	// decoded.
	ErrMalformedPayload = errors.New("nhd: malformed bridge payload")

	// ErrBridgeRejected is returned when the bridge answers a request
	// with a failure it does not map to a more specific error.
	ErrBridgeRejected = errors.New("nhd: bridge rejected request")
)
