package nhd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/avoip-core/internal/device"
)

// Bridge actions understood by the NetworkHD bridge process.
const (
	ActionGetDevices  = "get_devices"
	ActionGetStatus   = "get_device_status"
	ActionGetMatrix   = "get_matrix"
	ActionSetMatrix   = "set_matrix"
	ActionClearMatrix = "clear_matrix"
	ActionSetPower    = "set_display_power"
)

// RequestMessage is sent to the bridge on its command topic.
// Topic: avoip/bridge/{bridge_id}/command
type RequestMessage struct {
	// ID uniquely identifies this request; the reply arrives on the
	// per-request reply topic carrying the same id.
	ID string `json:"id"`

	// Timestamp is when the request was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation.
	Action string `json:"action"`

	// Parameters contains action-specific values.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage is the bridge's reply to a request.
// Topic: avoip/bridge/{bridge_id}/reply/{request_id}
type ResponseMessage struct {
	// ID is the id from the original request.
	ID string `json:"id"`

	// Timestamp is when the response was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Success indicates whether the request succeeded.
	Success bool `json:"success"`

	// Data contains the action-specific payload (if successful).
	Data json.RawMessage `json:"data,omitempty"`

	// Error contains error details (if failed).
	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes reported by the bridge.
const (
	ErrCodeControllerUnreachable = "CONTROLLER_UNREACHABLE"
	ErrCodeDeviceNotFound        = "DEVICE_NOT_FOUND"
	ErrCodeInvalidParameters     = "INVALID_PARAMETERS"
	ErrCodeProtocolError         = "PROTOCOL_ERROR"
	ErrCodeTimeout               = "TIMEOUT"
)

// NotifyMessage is published by the bridge when the controller emits an
// asynchronous notification.
// Topic: avoip/bridge/{bridge_id}/notify/{kind}
type NotifyMessage struct {
	// Event is the notification kind (matches device.EventKind values).
	Event string `json:"event"`

	// Device is the true name of the endpoint the event concerns.
	Device string `json:"device"`

	// Source is the encoder alias for video events, when reported.
	Source string `json:"source,omitempty"`

	// Power carries the new state for sink power events.
	Power string `json:"power,omitempty"`

	// Timestamp is when the bridge decoded the controller notification.
	Timestamp time.Time `json:"timestamp"`
}

// devicesPayload is the data shape for get_devices replies.
type devicesPayload struct {
	Devices []device.Device `json:"devices"`
}

// statusPayload is the data shape for get_device_status replies. The bridge
// reports per-device failures individually so a batch can partially succeed.
type statusPayload struct {
	Statuses []statusEntry `json:"statuses"`
	Failed   []failedEntry `json:"failed,omitempty"`
}

type statusEntry struct {
	TrueName string        `json:"true_name"`
	Status   device.Status `json:"status"`
}

type failedEntry struct {
	TrueName string `json:"true_name"`
	Error    string `json:"error"`
}

// matrixPayload is the data shape for get_matrix replies.
type matrixPayload struct {
	Assignments []device.Assignment `json:"assignments"`
}

// Topic helpers

// TopicPrefix is the base topic for all AV-over-IP core messages.
const TopicPrefix = "avoip"

// CommandTopic returns the topic requests are published to.
// Example: avoip/bridge/nhd-main/command
func CommandTopic(bridgeID string) string {
	return fmt.Sprintf("%s/bridge/%s/command", TopicPrefix, bridgeID)
}

// ReplyTopic returns the per-request reply topic.
// Example: avoip/bridge/nhd-main/reply/req-abc123
func ReplyTopic(bridgeID, requestID string) string {
	return fmt.Sprintf("%s/bridge/%s/reply/%s", TopicPrefix, bridgeID, requestID)
}

// ReplySubscribeTopic returns the subscription pattern for all replies.
// Example: avoip/bridge/nhd-main/reply/+
func ReplySubscribeTopic(bridgeID string) string {
	return fmt.Sprintf("%s/bridge/%s/reply/+", TopicPrefix, bridgeID)
}

// NotifyTopic returns the topic for one notification kind.
// Example: avoip/bridge/nhd-main/notify/video_lost
func NotifyTopic(bridgeID, kind string) string {
	return fmt.Sprintf("%s/bridge/%s/notify/%s", TopicPrefix, bridgeID, kind)
}

// NotifySubscribeTopic returns the subscription pattern for all
// notifications.
// Example: avoip/bridge/nhd-main/notify/#
func NotifySubscribeTopic(bridgeID string) string {
	return fmt.Sprintf("%s/bridge/%s/notify/#", TopicPrefix, bridgeID)
}

// HealthTopic returns the bridge health status topic.
// Example: avoip/bridge/nhd-main/health
func HealthTopic(bridgeID string) string {
	return fmt.Sprintf("%s/bridge/%s/health", TopicPrefix, bridgeID)
}
