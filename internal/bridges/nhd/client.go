package nhd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/avoip-core/internal/device"
)

// defaultRequestTimeout bounds how long a request waits for the bridge's
// reply before failing with ErrBridgeTimeout.
const defaultRequestTimeout = 10 * time.Second

// Broker is the MQTT capability set the client needs.
// This allows mocking in tests and flexibility in implementation.
type Broker interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a client.
type Options struct {
	// BridgeID identifies the NetworkHD bridge instance on the broker.
	BridgeID string

	// Broker is the MQTT connection.
	Broker Broker

	// RequestTimeout bounds each request/reply exchange. Zero selects
	// defaultRequestTimeout.
	RequestTimeout time.Duration

	// Logger is optional; nil disables logging.
	Logger Logger
}

// Client implements device.Client over MQTT request/reply against a
// NetworkHD protocol bridge.
type Client struct {
	bridgeID string
	broker   Broker
	timeout  time.Duration
	logger   Logger

	pendingMu sync.Mutex
	pending   map[string]chan ResponseMessage

	handlersMu sync.RWMutex
	handlers   map[string]device.NotificationHandler

	startOnce sync.Once
	started   atomic.Bool
	startErr  error
}

// NewClient creates a client. Call Start to subscribe to the bridge's
// reply and notification topics before issuing requests.
func NewClient(opts Options) (*Client, error) {
	if opts.BridgeID == "" {
		return nil, fmt.Errorf("bridge id is required")
	}
	if opts.Broker == nil {
		return nil, fmt.Errorf("broker is required")
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		bridgeID: opts.BridgeID,
		broker:   opts.Broker,
		timeout:  timeout,
		logger:   opts.Logger,
		pending:  make(map[string]chan ResponseMessage),
		handlers: make(map[string]device.NotificationHandler),
	}, nil
}

// Start subscribes to the bridge's reply and notification topics.
// Idempotent; subsequent calls return the first result.
func (c *Client) Start() error {
	c.startOnce.Do(func() {
		if err := c.broker.Subscribe(ReplySubscribeTopic(c.bridgeID), 1, c.handleReply); err != nil {
			c.startErr = fmt.Errorf("subscribe to replies: %w", err)
			return
		}
		if err := c.broker.Subscribe(NotifySubscribeTopic(c.bridgeID), 1, c.handleNotify); err != nil {
			c.startErr = fmt.Errorf("subscribe to notifications: %w", err)
			return
		}
		c.started.Store(true)
		c.logInfo("nhd client started", "bridge_id", c.bridgeID)
	})
	return c.startErr
}

// FetchDeviceDescriptors returns the full endpoint inventory.
func (c *Client) FetchDeviceDescriptors(ctx context.Context) ([]device.Device, error) {
	data, err := c.request(ctx, ActionGetDevices, nil)
	if err != nil {
		return nil, err
	}

	var payload devicesPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: devices: %v", ErrMalformedPayload, err)
	}

	for _, d := range payload.Devices {
		if d.TrueName == "" {
			return nil, fmt.Errorf("%w: device with empty true_name", ErrMalformedPayload)
		}
		if !d.Role.Valid() {
			return nil, fmt.Errorf("%w: device %s role %q", ErrMalformedPayload, d.TrueName, d.Role)
		}
	}
	return payload.Devices, nil
}

// FetchDeviceStatus returns transient status for the named endpoints.
// Bridge-reported per-device failures surface as StatusResult.Err entries.
func (c *Client) FetchDeviceStatus(ctx context.Context, trueNames []string) ([]device.StatusResult, error) {
	data, err := c.request(ctx, ActionGetStatus, map[string]any{
		"devices": trueNames,
	})
	if err != nil {
		return nil, err
	}

	var payload statusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: statuses: %v", ErrMalformedPayload, err)
	}

	results := make([]device.StatusResult, 0, len(payload.Statuses)+len(payload.Failed))
	for _, entry := range payload.Statuses {
		results = append(results, device.StatusResult{
			TrueName: entry.TrueName,
			Status:   entry.Status,
		})
	}
	for _, entry := range payload.Failed {
		results = append(results, device.StatusResult{
			TrueName: entry.TrueName,
			Err:      fmt.Errorf("%w: %s", device.ErrDeviceUnreachable, entry.Error),
		})
	}
	return results, nil
}

// FetchMatrixAssignments returns the current routing table.
func (c *Client) FetchMatrixAssignments(ctx context.Context) ([]device.Assignment, error) {
	data, err := c.request(ctx, ActionGetMatrix, nil)
	if err != nil {
		return nil, err
	}

	var payload matrixPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: assignments: %v", ErrMalformedPayload, err)
	}
	return payload.Assignments, nil
}

// SetMatrix routes the source encoder to the target decoders.
func (c *Client) SetMatrix(ctx context.Context, source string, targets []string) error {
	_, err := c.request(ctx, ActionSetMatrix, map[string]any{
		"source":  source,
		"targets": targets,
	})
	return err
}

// ClearMatrix disconnects the target decoders from all sources.
func (c *Client) ClearMatrix(ctx context.Context, targets []string) error {
	_, err := c.request(ctx, ActionClearMatrix, map[string]any{
		"targets": targets,
	})
	return err
}

// SetDisplayPower issues a power command to the displays attached to the
// target decoders.
func (c *Client) SetDisplayPower(ctx context.Context, targets []string, state device.PowerState) error {
	_, err := c.request(ctx, ActionSetPower, map[string]any{
		"targets": targets,
		"state":   string(state),
	})
	return err
}

// SubscribeNotifications registers a handler for controller events.
func (c *Client) SubscribeNotifications(handler device.NotificationHandler) (device.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	id := uuid.New().String()
	c.handlersMu.Lock()
	c.handlers[id] = handler
	c.handlersMu.Unlock()

	return &subscription{id: id, client: c}, nil
}

// subscription is a handle to a registered notification handler.
type subscription struct {
	id     string
	client *Client
	once   sync.Once
}

func (s *subscription) ID() string { return s.id }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.client.handlersMu.Lock()
		delete(s.client.handlers, s.id)
		s.client.handlersMu.Unlock()
	})
}

// request performs one correlated request/reply exchange with the bridge.
func (c *Client) request(ctx context.Context, action string, params map[string]any) (json.RawMessage, error) {
	if !c.started.Load() {
		return nil, ErrNotStarted
	}
	if !c.broker.IsConnected() {
		return nil, ErrNotConnected
	}

	id := uuid.New().String()
	req := RequestMessage{
		ID:         id,
		Timestamp:  time.Now().UTC(),
		Action:     action,
		Parameters: params,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ch := make(chan ResponseMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.broker.Publish(CommandTopic(c.bridgeID), payload, 1, false); err != nil {
		return nil, fmt.Errorf("publish request: %w", err)
	}

	c.logDebug("request published", "action", action, "request_id", id)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.Success {
			return nil, responseError(action, resp.Error)
		}
		return resp.Data, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: action %s after %s", ErrBridgeTimeout, action, c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// responseError maps a bridge error payload onto package errors.
func responseError(action string, respErr *ResponseError) error {
	if respErr == nil {
		return fmt.Errorf("%w: action %s", ErrBridgeRejected, action)
	}

	switch respErr.Code {
	case ErrCodeControllerUnreachable, ErrCodeTimeout:
		return fmt.Errorf("%w: %s", device.ErrTransport, respErr.Message)
	case ErrCodeDeviceNotFound:
		return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, respErr.Message)
	default:
		return fmt.Errorf("%w: %s: %s", ErrBridgeRejected, respErr.Code, respErr.Message)
	}
}

// handleReply correlates a bridge reply with its pending request. The
// request id is the final topic segment; the payload carries it too, the
// topic wins on mismatch.
func (c *Client) handleReply(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return
	}
	id := parts[len(parts)-1]

	var resp ResponseMessage
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.logError("malformed reply payload", err, "topic", topic)
		return
	}
	resp.ID = id

	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	c.pendingMu.Unlock()

	if !ok {
		// Late reply after timeout, or a duplicate. Nothing waits for it.
		c.logDebug("unmatched reply dropped", "request_id", id)
		return
	}

	select {
	case ch <- resp:
	default:
	}
}

// handleNotify decodes a bridge notification and fans it out to registered
// handlers.
func (c *Client) handleNotify(topic string, payload []byte) {
	var msg NotifyMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logError("malformed notification payload", err, "topic", topic)
		return
	}

	kind := device.EventKind(msg.Event)
	if !kind.Valid() {
		c.logWarn("unknown notification event", "event", msg.Event, "device", msg.Device)
		return
	}

	ev := device.Event{
		Kind:       kind,
		TrueName:   msg.Device,
		Source:     msg.Source,
		Power:      device.PowerState(msg.Power),
		ReceivedAt: time.Now().UTC(),
	}
	if !msg.Timestamp.IsZero() {
		ev.ReceivedAt = msg.Timestamp
	}

	c.handlersMu.RLock()
	handlers := make([]device.NotificationHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, err error, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, append([]any{"error", err}, args...)...)
	}
}
