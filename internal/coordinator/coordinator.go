package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/avoip-core/internal/device"
	"github.com/nerrad567/avoip-core/internal/snapshot"
)

// Config holds the coordinator's tuning knobs. The zero value selects all
// defaults.
type Config struct {
	// PollInterval is the full-refresh cadence (clamped to 10s–300s).
	PollInterval time.Duration
	// DescriptorTTL is how long the endpoint descriptor list stays cached.
	DescriptorTTL time.Duration
	// DebounceWindow is the notification coalescing window.
	DebounceWindow time.Duration
}

// Coordinator is the facade over the refresh engine, notification dispatcher
// and poll scheduler. It owns command validation and the refresh policy that
// follows each command.
type Coordinator struct {
	client     device.Client
	store      *snapshot.Store
	repo       snapshot.Repository
	engine     *Engine
	dispatcher *Dispatcher
	scheduler  *Scheduler
	logger     Logger

	mu        sync.Mutex
	started   bool
	persistID string
	persistWG sync.WaitGroup
}

// New assembles a coordinator. repo may be nil, in which case snapshot
// persistence is disabled and every restart begins cold.
func New(client device.Client, store *snapshot.Store, repo snapshot.Repository, cfg Config) *Coordinator {
	engine := NewEngine(client, store, cfg.DescriptorTTL)
	return &Coordinator{
		client:     client,
		store:      store,
		repo:       repo,
		engine:     engine,
		dispatcher: NewDispatcher(client, engine, cfg.DebounceWindow),
		scheduler:  NewScheduler(engine, cfg.PollInterval),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the coordinator and its components.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
	c.engine.SetLogger(logger)
	c.dispatcher.SetLogger(logger)
	c.scheduler.SetLogger(logger)
}

// Start restores any persisted snapshot sections, wires the persistence
// subscriber, and launches the dispatcher and poll scheduler. Restored data
// is served immediately; the scheduler's first poll replaces it with live
// state.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}

	if c.repo != nil {
		if err := c.restore(ctx); err != nil {
			// A corrupt persisted snapshot must not prevent startup.
			c.logger.Warn("snapshot restore failed, starting cold", "error", err)
		}
		c.persistID = c.store.Subscribe(c.persistSection)
	}

	if err := c.dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}
	if err := c.scheduler.Start(ctx); err != nil {
		c.dispatcher.Stop()
		return fmt.Errorf("starting scheduler: %w", err)
	}

	c.started = true
	c.logger.Info("coordinator started")
	return nil
}

// Close stops the scheduler and dispatcher and waits for outstanding
// persistence writes. The snapshot store remains readable after Close.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	persistID := c.persistID
	c.persistID = ""
	c.mu.Unlock()

	c.scheduler.Stop()
	c.dispatcher.Stop()

	if persistID != "" {
		c.store.Unsubscribe(persistID)
	}
	c.persistWG.Wait()

	c.logger.Info("coordinator stopped")
}

// ReadSnapshot returns the current immutable snapshot. Never blocks.
func (c *Coordinator) ReadSnapshot() *snapshot.Snapshot {
	return c.store.Read()
}

// Subscribe registers a handler for section-change events and returns a
// subscription id for Unsubscribe.
func (c *Coordinator) Subscribe(h snapshot.ChangeHandler) string {
	return c.store.Subscribe(h)
}

// Unsubscribe removes a previously registered change handler.
func (c *Coordinator) Unsubscribe(id string) {
	c.store.Unsubscribe(id)
}

// RequestRefresh fetches and applies the named sections, joining any fetch
// already in flight. Blocks until the refresh completes.
func (c *Coordinator) RequestRefresh(ctx context.Context, sections ...snapshot.Section) error {
	return c.engine.Refresh(ctx, sections...)
}

// PollState reports the scheduler's current phase and last poll error.
func (c *Coordinator) PollState() (PollState, error) {
	return c.scheduler.State()
}

// SetMatrix routes source to every target decoder, or disconnects the
// targets when source is empty. Targets must be known decoders and source a
// known encoder.
//
// On success only the matrix section is refreshed: a routing change cannot
// alter descriptors or online-ness, so refreshing more would waste
// controller round-trips.
func (c *Coordinator) SetMatrix(ctx context.Context, source string, targets []string) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}

	snap := c.store.Read()
	for _, target := range targets {
		dev, ok := snap.Devices[target]
		if !ok {
			return fmt.Errorf("%w: %q", device.ErrDeviceNotFound, target)
		}
		if dev.Role != device.RoleDecoder {
			return fmt.Errorf("%w: %q is not a decoder", device.ErrInvalidRole, target)
		}
	}

	if source == "" {
		if err := c.client.ClearMatrix(ctx, targets); err != nil {
			return fmt.Errorf("clearing matrix: %w", err)
		}
	} else {
		dev, ok := snap.Devices[source]
		if !ok {
			return fmt.Errorf("%w: %q", device.ErrDeviceNotFound, source)
		}
		if dev.Role != device.RoleEncoder {
			return fmt.Errorf("%w: %q is not an encoder", device.ErrInvalidRole, source)
		}
		if err := c.client.SetMatrix(ctx, source, targets); err != nil {
			return fmt.Errorf("setting matrix: %w", err)
		}
	}

	c.logger.Info("matrix routing changed",
		"source", source, "targets", len(targets))

	return c.engine.Refresh(ctx, snapshot.SectionMatrix)
}

// SetPower sends a display power command to the target decoders. Targets
// must be known decoders and state on or off.
//
// No section is refreshed afterwards: display power is not tracked in any
// monitored section, so there is nothing to go stale.
func (c *Coordinator) SetPower(ctx context.Context, targets []string, state device.PowerState) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}
	if !state.Valid() {
		return fmt.Errorf("%w: %q", device.ErrInvalidPowerState, state)
	}

	snap := c.store.Read()
	for _, target := range targets {
		dev, ok := snap.Devices[target]
		if !ok {
			return fmt.Errorf("%w: %q", device.ErrDeviceNotFound, target)
		}
		if dev.Role != device.RoleDecoder {
			return fmt.Errorf("%w: %q is not a decoder", device.ErrInvalidRole, target)
		}
	}

	if err := c.client.SetDisplayPower(ctx, targets, state); err != nil {
		return fmt.Errorf("setting display power: %w", err)
	}

	c.logger.Info("display power set",
		"state", string(state), "targets", len(targets))
	return nil
}

// restore loads persisted section payloads into the store so readers get a
// stale-but-valid view before the first live refresh.
func (c *Coordinator) restore(ctx context.Context) error {
	records, err := c.repo.LoadSections(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := c.store.RestoreSection(rec.Section, rec.Payload, rec.Version, rec.UpdatedAt); err != nil {
			return fmt.Errorf("restoring %s: %w", rec.Section, err)
		}
		c.logger.Info("section restored from persistence",
			"section", string(rec.Section),
			"version", rec.Version,
			"age", time.Since(rec.UpdatedAt).String(),
		)
	}
	return nil
}

// persistSection is the store change handler that writes the latest section
// payload to the repository. Runs asynchronously so persistence latency
// never delays refresh applies.
func (c *Coordinator) persistSection(sec snapshot.Section, _ uint64) {
	c.persistWG.Add(1)
	go func() {
		defer c.persistWG.Done()

		payload, v, updatedAt, err := c.store.EncodeSection(sec)
		if err != nil {
			c.logger.Warn("section encode for persistence failed",
				"section", string(sec), "error", err)
			return
		}
		// A newer apply may have landed since the notification; persist
		// whatever is current, the upsert keeps only the latest row anyway.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = c.repo.SaveSection(ctx, snapshot.PersistedSection{
			Section:   sec,
			Version:   v,
			UpdatedAt: updatedAt,
			Payload:   payload,
		})
		if err != nil {
			c.logger.Warn("section persistence failed",
				"section", string(sec), "error", err)
		}
	}()
}
