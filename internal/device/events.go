package device

import "time"

// EventKind identifies the type of an asynchronous controller notification.
type EventKind string

// Event kinds emitted by the controller's notification feed.
const (
	// EventDeviceOnline fires when an endpoint joins the fleet network.
	EventDeviceOnline EventKind = "device_online"

	// EventDeviceOffline fires when an endpoint drops off the fleet network.
	EventDeviceOffline EventKind = "device_offline"

	// EventVideoFound fires when an endpoint detects an input signal.
	EventVideoFound EventKind = "video_found"

	// EventVideoLost fires when an endpoint loses its input signal.
	EventVideoLost EventKind = "video_lost"

	// EventSinkPowerChanged fires when a display attached to a decoder
	// reports a power state change.
	EventSinkPowerChanged EventKind = "sink_power_changed"
)

// Valid reports whether the event kind is a recognised value.
func (k EventKind) Valid() bool {
	switch k {
	case EventDeviceOnline, EventDeviceOffline, EventVideoFound,
		EventVideoLost, EventSinkPowerChanged:
		return true
	default:
		return false
	}
}

// Event is a typed asynchronous notification from the controller.
type Event struct {
	Kind     EventKind
	TrueName string

	// Source is the encoder alias associated with video events, when the
	// controller reports one. Empty otherwise.
	Source string

	// Power carries the new state for EventSinkPowerChanged.
	Power PowerState

	// ReceivedAt is when the transport decoded the notification.
	ReceivedAt time.Time
}

// NotificationHandler receives controller events. Handlers are invoked from
// the transport's receive path and must not block.
type NotificationHandler func(Event)
