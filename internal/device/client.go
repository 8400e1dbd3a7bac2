package device

import "context"

// Client is the capability set the coordinator consumes from the transport
// collaborator. Implementations wrap an already-abstracted controller API
// (see internal/bridges/nhd); the coordinator never encodes wire commands.
//
// All methods honour context cancellation. Fetch methods return the complete
// result for their section; the coordinator treats a returned error as a
// whole-section failure.
type Client interface {
	// FetchDeviceDescriptors returns the full endpoint inventory.
	// Descriptors change rarely and are safe to cache.
	FetchDeviceDescriptors(ctx context.Context) ([]Device, error)

	// FetchDeviceStatus returns transient status for the named endpoints.
	// Per-device failures are reported in individual StatusResult entries;
	// the returned error is reserved for transport-level failures that
	// invalidate the whole batch.
	FetchDeviceStatus(ctx context.Context, trueNames []string) ([]StatusResult, error)

	// FetchMatrixAssignments returns the current routing table.
	FetchMatrixAssignments(ctx context.Context) ([]Assignment, error)

	// SetMatrix routes the source encoder to the target decoders.
	SetMatrix(ctx context.Context, source string, targets []string) error

	// ClearMatrix disconnects the target decoders from all sources.
	ClearMatrix(ctx context.Context, targets []string) error

	// SetDisplayPower issues a power command to the displays attached to
	// the target decoders. Display power is not part of any monitored
	// section, so callers must not refresh after this.
	SetDisplayPower(ctx context.Context, targets []string, state PowerState) error

	// SubscribeNotifications registers a handler for asynchronous
	// controller events. The returned Subscription stops delivery when
	// cancelled.
	SubscribeNotifications(handler NotificationHandler) (Subscription, error)
}

// Subscription is a handle to an active notification registration.
type Subscription interface {
	// ID uniquely identifies the registration.
	ID() string

	// Unsubscribe stops event delivery. Safe to call multiple times.
	Unsubscribe()
}
