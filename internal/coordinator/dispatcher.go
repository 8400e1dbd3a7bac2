package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/avoip-core/internal/device"
	"github.com/nerrad567/avoip-core/internal/snapshot"
)

// DefaultDebounceWindow is how long the dispatcher waits after the first
// event of a burst before triggering refreshes. A controller reboot drops
// every endpoint within a second; one window's worth of events becomes a
// single refresh per affected section.
const DefaultDebounceWindow = 500 * time.Millisecond

// eventQueueSize bounds the dispatcher's inbound event buffer. Notifications
// beyond this are dropped with a warning; the next poll reconciles.
const eventQueueSize = 64

// sectionsForEvent is the static table mapping each event kind to the
// minimal section set needed to reflect it. Sink power changes map to no
// section at all: display power is not tracked in any monitored section.
var sectionsForEvent = map[device.EventKind][]snapshot.Section{
	device.EventDeviceOnline:     {snapshot.SectionDevices},
	device.EventDeviceOffline:    {snapshot.SectionDevices},
	device.EventVideoFound:       {snapshot.SectionDeviceStatus},
	device.EventVideoLost:        {snapshot.SectionDeviceStatus},
	device.EventSinkPowerChanged: nil,
}

// Dispatcher consumes the controller's asynchronous notification feed and
// converts it into selective refresh requests.
//
// Events arriving within the debounce window are coalesced: the affected
// section sets are unioned and a single Refresh call is issued when the
// window closes. This is what keeps a notification storm from saturating
// the device API.
type Dispatcher struct {
	client device.Client
	engine *Engine
	window time.Duration
	logger Logger

	events chan device.Event
	sub    device.Subscription

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewDispatcher creates a dispatcher. A zero window selects
// DefaultDebounceWindow.
func NewDispatcher(client device.Client, engine *Engine, window time.Duration) *Dispatcher {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Dispatcher{
		client: client,
		engine: engine,
		window: window,
		logger: noopLogger{},
		events: make(chan device.Event, eventQueueSize),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Start subscribes to the notification feed and begins dispatching.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}

	sub, err := d.client.SubscribeNotifications(d.enqueue)
	if err != nil {
		return err
	}
	d.sub = sub

	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.loop(ctx)

	d.started = true
	d.logger.Info("notification dispatcher started",
		"debounce_ms", d.window.Milliseconds())
	return nil
}

// Stop unsubscribes from the feed and waits for in-flight dispatch work.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	sub := d.sub
	cancel := d.cancel
	d.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
}

// enqueue receives events on the transport's receive path. It must not
// block, so a full queue drops the event; the periodic poll reconciles any
// state the drop missed.
func (d *Dispatcher) enqueue(ev device.Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("notification queue full, dropping event",
			"kind", string(ev.Kind), "device", ev.TrueName)
	}
}

// loop accumulates events and fires coalesced refreshes when the debounce
// window after the first pending event elapses.
func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	pending := make(map[snapshot.Section]struct{})
	invalidate := false

	timer := time.NewTimer(d.window)
	if !timer.Stop() {
		<-timer.C
	}
	timerArmed := false

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-d.events:
			secs, known := sectionsForEvent[ev.Kind]
			if !known {
				d.logger.Warn("unknown notification kind",
					"kind", string(ev.Kind), "device", ev.TrueName)
				continue
			}

			d.logger.Debug("notification received",
				"kind", string(ev.Kind), "device", ev.TrueName)

			for _, sec := range secs {
				pending[sec] = struct{}{}
				if sec == snapshot.SectionDevices {
					// Online-ness changed: the cached descriptor
					// list is now wrong.
					invalidate = true
				}
			}

			if len(pending) > 0 && !timerArmed {
				timer.Reset(d.window)
				timerArmed = true
			}

		case <-timer.C:
			timerArmed = false
			if len(pending) == 0 {
				continue
			}

			sections := make([]snapshot.Section, 0, len(pending))
			for sec := range pending {
				sections = append(sections, sec)
			}
			pending = make(map[snapshot.Section]struct{})

			if invalidate {
				d.engine.InvalidateDescriptors()
				invalidate = false
			}

			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				if err := d.engine.Refresh(ctx, sections...); err != nil {
					d.logger.Warn("notification-triggered refresh failed",
						"error", err)
				}
			}()
		}
	}
}
