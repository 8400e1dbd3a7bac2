package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/avoip-core/internal/cache"
	"github.com/nerrad567/avoip-core/internal/device"
	"github.com/nerrad567/avoip-core/internal/snapshot"
)

// Logger defines the logging interface used by the coordinator components.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// descriptorCacheKey is the single key under which the endpoint descriptor
// list is cached. Descriptors change rarely; status and routing never cache.
const descriptorCacheKey = "device_descriptors"

// DefaultDescriptorTTL is how long cached descriptors stay fresh.
const DefaultDescriptorTTL = 600 * time.Second

// flight tracks one in-progress section fetch so that concurrent requests
// for the same section join it instead of duplicating the API call.
type flight struct {
	done chan struct{}
	err  error
}

// Engine executes full or selective refreshes against the device API and
// merges results into the snapshot store.
//
// Per-section single-flight is the system's primary anti-overload mechanism:
// only one fetch per section is ever outstanding, so an older result can
// never overwrite a newer one, and bursts of refresh requests collapse onto
// the API call already running.
type Engine struct {
	client      device.Client
	store       *snapshot.Store
	descriptors *cache.Cache[[]device.Device]
	ttl         time.Duration
	logger      Logger

	mu       sync.Mutex
	inflight map[snapshot.Section]*flight
}

// NewEngine creates a refresh engine. A zero ttl selects
// DefaultDescriptorTTL.
func NewEngine(client device.Client, store *snapshot.Store, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultDescriptorTTL
	}
	return &Engine{
		client:      client,
		store:       store,
		descriptors: cache.New[[]device.Device](),
		ttl:         ttl,
		logger:      noopLogger{},
		inflight:    make(map[snapshot.Section]*flight),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Refresh fetches and applies the named sections. Duplicate section names
// are ignored. Sections refresh concurrently with each other; a section
// already in flight is joined rather than re-fetched.
//
// A failed section leaves the store's prior value for that section intact
// (stale-but-valid) and its error is included in the returned joined error.
// Other requested sections still complete.
func (e *Engine) Refresh(ctx context.Context, sections ...snapshot.Section) error {
	if len(sections) == 0 {
		return ErrNoSections
	}

	seen := make(map[snapshot.Section]struct{}, len(sections))
	var unique []snapshot.Section
	for _, sec := range sections {
		if !sec.Valid() {
			return fmt.Errorf("%w: %q", snapshot.ErrUnknownSection, sec)
		}
		if _, dup := seen[sec]; dup {
			continue
		}
		seen[sec] = struct{}{}
		unique = append(unique, sec)
	}

	errs := make([]error, len(unique))
	var wg sync.WaitGroup
	for i, sec := range unique {
		wg.Add(1)
		go func(i int, sec snapshot.Section) {
			defer wg.Done()
			errs[i] = e.refreshSection(ctx, sec)
		}(i, sec)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// InvalidateDescriptors drops the cached descriptor list so the next devices
// refresh fetches live. Called by the dispatcher when an online/offline
// notification proves the cached inventory wrong.
func (e *Engine) InvalidateDescriptors() {
	e.descriptors.Invalidate(descriptorCacheKey)
}

// refreshSection runs or joins the single flight for one section.
//
// When a flight already exists, the caller waits for that flight's result:
// the initiating caller's fetch parameters win, per the join-on-single-flight
// contract.
func (e *Engine) refreshSection(ctx context.Context, sec snapshot.Section) error {
	e.mu.Lock()
	if f, ok := e.inflight[sec]; ok {
		e.mu.Unlock()
		e.logger.Debug("joining in-flight refresh", "section", string(sec))
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	e.inflight[sec] = f
	e.mu.Unlock()

	f.err = e.fetchAndApply(ctx, sec)

	e.mu.Lock()
	delete(e.inflight, sec)
	e.mu.Unlock()
	close(f.done)

	return f.err
}

// fetchAndApply performs the API fetch for one section and hands the result
// to the snapshot store. A cancelled context never produces a partial apply:
// the result of a cancelled fetch is discarded.
func (e *Engine) fetchAndApply(ctx context.Context, sec snapshot.Section) error {
	started := time.Now()

	var err error
	switch sec {
	case snapshot.SectionDevices:
		err = e.refreshDevices(ctx)
	case snapshot.SectionDeviceStatus:
		err = e.refreshStatuses(ctx)
	case snapshot.SectionMatrix:
		err = e.refreshAssignments(ctx)
	default:
		return fmt.Errorf("%w: %q", snapshot.ErrUnknownSection, sec)
	}

	if err != nil {
		e.logger.Warn("section refresh failed",
			"section", string(sec),
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		return fmt.Errorf("refreshing %s: %w", sec, err)
	}

	e.logger.Debug("section refreshed",
		"section", string(sec),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

func (e *Engine) refreshDevices(ctx context.Context) error {
	devices, err := e.fetchDescriptors(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = e.store.ApplyDevices(devices)
	return err
}

func (e *Engine) refreshStatuses(ctx context.Context) error {
	// Enumerate the fleet through the descriptor cache. During a full
	// refresh this collapses with the parallel devices fetch via the
	// cache's own single-flight, so the inventory is still fetched once.
	devices, err := e.fetchDescriptors(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.TrueName)
	}
	if len(names) == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err = e.store.ApplyStatuses(snapshot.StatusData{})
		return err
	}

	results, err := e.client.FetchDeviceStatus(ctx, names)
	if err != nil {
		// Whole batch failed (transport-level): leave the prior section
		// value untouched.
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := snapshot.StatusData{
		Statuses: make(map[string]device.Status, len(results)),
	}
	for _, res := range results {
		if res.Err != nil {
			// Partial-failure isolation: one dead endpoint does not
			// fail the section, it just goes offline.
			e.logger.Warn("endpoint status fetch failed",
				"device", res.TrueName, "error", res.Err)
			data.Unreachable = append(data.Unreachable, res.TrueName)
			continue
		}
		data.Statuses[res.TrueName] = res.Status
	}

	_, err = e.store.ApplyStatuses(data)
	return err
}

func (e *Engine) refreshAssignments(ctx context.Context) error {
	assignments, err := e.client.FetchMatrixAssignments(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = e.store.ApplyAssignments(assignments)
	return err
}

// fetchDescriptors reads the endpoint inventory through the TTL cache.
func (e *Engine) fetchDescriptors(ctx context.Context) ([]device.Device, error) {
	return e.descriptors.GetOrFetch(ctx, descriptorCacheKey, e.ttl,
		func(ctx context.Context) ([]device.Device, error) {
			return e.client.FetchDeviceDescriptors(ctx)
		})
}
