package snapshot

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/avoip-core/internal/device"
)

// Logger defines the logging interface used by the Store.
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

// ChangeHandler is invoked after a section is successfully applied.
// Handlers run on the applying goroutine and must not block; spin up a
// goroutine or hand off to a channel for slow work.
type ChangeHandler func(section Section, version uint64)

// Store holds the current Snapshot and serialises all mutation through
// per-section Apply methods.
//
// Reads never block: the current snapshot is published through an atomic
// pointer and every apply swaps in a fresh copy-on-write snapshot. Appliers
// are serialised by a mutex, which is cheap because the Refresh Engine only
// ever has one fetch in flight per section.
type Store struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serialises appliers

	subs   map[string]ChangeHandler
	subsMu sync.RWMutex

	logger Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewStore creates a Store holding an empty snapshot with all section
// versions at zero.
func NewStore() *Store {
	s := &Store{
		subs:   make(map[string]ChangeHandler),
		logger: noopLogger{},
		now:    time.Now,
	}
	s.current.Store(emptySnapshot())
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Read returns the current snapshot. The returned value is immutable and
// safe to retain; it will never be mutated by a later apply.
func (s *Store) Read() *Snapshot {
	return s.current.Load()
}

// Subscribe registers a change handler and returns its subscription ID.
func (s *Store) Subscribe(h ChangeHandler) string {
	id := uuid.New().String()
	s.subsMu.Lock()
	s.subs[id] = h
	s.subsMu.Unlock()
	return id
}

// Unsubscribe removes a change handler. Unknown IDs are ignored.
func (s *Store) Unsubscribe(id string) {
	s.subsMu.Lock()
	delete(s.subs, id)
	s.subsMu.Unlock()
}

// ApplyDevices replaces the devices section with a fresh descriptor fetch.
// Endpoints absent from the new inventory are dropped: a device exists only
// while the controller reports it.
func (s *Store) ApplyDevices(devices []device.Device) (uint64, error) {
	s.mu.Lock()

	prev := s.current.Load()
	next := prev.clone()

	next.Devices = make(map[string]device.Device, len(devices))
	for _, d := range devices {
		next.Devices[d.TrueName] = d
	}

	version := s.bump(next, SectionDevices)
	s.current.Store(next)
	s.mu.Unlock()

	s.logger.Debug("devices section applied", "count", len(devices), "version", version)
	s.notify(SectionDevices, version)
	return version, nil
}

// ApplyStatuses replaces the device_status section with the merged result of
// one status fetch cycle.
//
// Endpoints listed as unreachable keep their previous status entry but are
// marked offline in the devices section; when that flips any online flag the
// devices section version bumps as well and both changes are announced.
func (s *Store) ApplyStatuses(data StatusData) (uint64, error) {
	s.mu.Lock()

	prev := s.current.Load()
	next := prev.clone()

	next.Statuses = make(map[string]device.Status, len(data.Statuses)+len(data.Unreachable))
	for name, st := range data.Statuses {
		next.Statuses[name] = st
	}

	// Unreachable endpoints: carry the stale status forward rather than
	// losing it, and flip the descriptor offline. The devices map is shared
	// with the published snapshot, so copy it before the first flip.
	devicesChanged := false
	for _, name := range data.Unreachable {
		if st, ok := prev.Statuses[name]; ok {
			next.Statuses[name] = st
		}
		if d, ok := next.Devices[name]; ok && d.Online {
			if !devicesChanged {
				copied := make(map[string]device.Device, len(next.Devices))
				for k, v := range next.Devices {
					copied[k] = v
				}
				next.Devices = copied
				devicesChanged = true
			}
			d.Online = false
			next.Devices[name] = d
		}
	}

	version := s.bump(next, SectionDeviceStatus)
	var devVersion uint64
	if devicesChanged {
		devVersion = s.bump(next, SectionDevices)
	}
	s.current.Store(next)
	s.mu.Unlock()

	s.logger.Debug("device_status section applied",
		"count", len(data.Statuses),
		"unreachable", len(data.Unreachable),
		"version", version,
	)
	s.notify(SectionDeviceStatus, version)
	if devicesChanged {
		s.notify(SectionDevices, devVersion)
	}
	return version, nil
}

// ApplyAssignments replaces the matrix_assignments section.
//
// Each decoder may map to at most one encoder. A fetch result that lists the
// same decoder twice is malformed; the apply is rejected with
// ErrDataIntegrity and the prior section value is retained.
func (s *Store) ApplyAssignments(assignments []device.Assignment) (uint64, error) {
	routing := make(map[string]string, len(assignments))
	for _, a := range assignments {
		if _, dup := routing[a.Decoder]; dup {
			return 0, fmt.Errorf("%w: decoder %q assigned to multiple encoders",
				ErrDataIntegrity, a.Decoder)
		}
		if a.Encoder == "" {
			continue // disconnected decoders carry no entry
		}
		routing[a.Decoder] = a.Encoder
	}

	s.mu.Lock()

	prev := s.current.Load()
	next := prev.clone()
	next.Assignments = routing

	version := s.bump(next, SectionMatrix)
	s.current.Store(next)
	s.mu.Unlock()

	s.logger.Debug("matrix_assignments section applied", "count", len(routing), "version", version)
	s.notify(SectionMatrix, version)
	return version, nil
}

// EncodeSection serialises a section's current payload for persistence.
func (s *Store) EncodeSection(sec Section) (payload []byte, version uint64, updatedAt time.Time, err error) {
	snap := s.Read()

	var v any
	switch sec {
	case SectionDevices:
		v = snap.Devices
	case SectionDeviceStatus:
		v = snap.Statuses
	case SectionMatrix:
		v = snap.Assignments
	default:
		return nil, 0, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownSection, sec)
	}

	payload, err = json.Marshal(v)
	if err != nil {
		return nil, 0, time.Time{}, fmt.Errorf("encoding section %s: %w", sec, err)
	}
	return payload, snap.Versions[sec], snap.UpdatedAt[sec], nil
}

// RestoreSection loads a persisted payload into the store at startup.
//
// Restore bypasses version bumping and change notification: the persisted
// view is stale-but-valid seed data, not a refresh result. Calling this
// after refreshes have begun would violate section ordering, so the
// coordinator only restores before Start.
func (s *Store) RestoreSection(sec Section, payload []byte, version uint64, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	next := prev.clone()

	switch sec {
	case SectionDevices:
		m := make(map[string]device.Device)
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("restoring section %s: %w", sec, err)
		}
		next.Devices = m
	case SectionDeviceStatus:
		m := make(map[string]device.Status)
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("restoring section %s: %w", sec, err)
		}
		next.Statuses = m
	case SectionMatrix:
		m := make(map[string]string)
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("restoring section %s: %w", sec, err)
		}
		next.Assignments = m
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSection, sec)
	}

	next.Versions[sec] = version
	next.UpdatedAt[sec] = updatedAt
	s.current.Store(next)

	s.logger.Info("section restored from persistence", "section", string(sec), "version", version)
	return nil
}

// bump increments a section version on the pending snapshot.
// Caller must hold s.mu.
func (s *Store) bump(next *Snapshot, sec Section) uint64 {
	next.Versions[sec]++
	next.UpdatedAt[sec] = s.now().UTC()
	return next.Versions[sec]
}

// notify fans a change event out to all subscribers.
func (s *Store) notify(sec Section, version uint64) {
	s.subsMu.RLock()
	handlers := make([]ChangeHandler, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.subsMu.RUnlock()

	for _, h := range handlers {
		h(sec, version)
	}
}

// emptySnapshot returns the startup snapshot: no data, all versions zero.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		Devices:     make(map[string]device.Device),
		Statuses:    make(map[string]device.Status),
		Assignments: make(map[string]string),
		Versions:    make(map[Section]uint64),
		UpdatedAt:   make(map[Section]time.Time),
	}
}

// clone creates a snapshot copy whose maps can be replaced section by
// section without touching the published original. Maps that a given apply
// does not replace are shared, which is safe because published snapshots are
// never mutated.
func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		Devices:     s.Devices,
		Statuses:    s.Statuses,
		Assignments: s.Assignments,
		Versions:    make(map[Section]uint64, len(s.Versions)),
		UpdatedAt:   make(map[Section]time.Time, len(s.UpdatedAt)),
	}
	for k, v := range s.Versions {
		next.Versions[k] = v
	}
	for k, v := range s.UpdatedAt {
		next.UpdatedAt[k] = v
	}
	return next
}
