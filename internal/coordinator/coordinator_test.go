package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/avoip-core/internal/device"
	"github.com/nerrad567/avoip-core/internal/snapshot"
)

// fakeRepo is an in-memory snapshot.Repository.
type fakeRepo struct {
	mu      sync.Mutex
	rows    map[snapshot.Section]snapshot.PersistedSection
	saveErr error
	loadErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[snapshot.Section]snapshot.PersistedSection)}
}

func (r *fakeRepo) SaveSection(ctx context.Context, rec snapshot.PersistedSection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.rows[rec.Section] = rec
	return nil
}

func (r *fakeRepo) LoadSections(ctx context.Context) ([]snapshot.PersistedSection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	records := make([]snapshot.PersistedSection, 0, len(r.rows))
	for _, rec := range r.rows {
		records = append(records, rec)
	}
	return records, nil
}

func (r *fakeRepo) get(sec snapshot.Section) (snapshot.PersistedSection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[sec]
	return rec, ok
}

// seedDevices populates the coordinator's store with the test fleet so
// command validation has descriptors to check against.
func seedDevices(t *testing.T, c *Coordinator) {
	t.Helper()
	if err := c.RequestRefresh(context.Background(), snapshot.SectionDevices); err != nil {
		t.Fatalf("seeding devices: %v", err)
	}
}

func TestSetMatrixRefreshesOnlyMatrixSection(t *testing.T) {
	client := &mockClient{
		descriptors: testFleet(),
		assignments: []device.Assignment{{Decoder: "RX-01", Encoder: "TX-01"}},
	}
	c := New(client, snapshot.NewStore(), nil, Config{})
	seedDevices(t, c)

	err := c.SetMatrix(context.Background(), "TX-01", []string{"RX-01", "RX-02"})
	if err != nil {
		t.Fatalf("SetMatrix() error = %v", err)
	}

	client.mu.Lock()
	setCalls, src := client.setMatrixCalls, client.lastMatrixSrc
	client.mu.Unlock()
	if setCalls != 1 || src != "TX-01" {
		t.Errorf("SetMatrix calls = %d src %q, want 1 call for TX-01", setCalls, src)
	}

	snap := c.ReadSnapshot()
	if v := snap.Version(snapshot.SectionMatrix); v != 1 {
		t.Errorf("matrix version = %d, want 1 (refreshed)", v)
	}
	// Routing changes must not trigger a status refresh.
	if v := snap.Version(snapshot.SectionDeviceStatus); v != 0 {
		t.Errorf("status version = %d, want 0 (not refreshed)", v)
	}
	if _, statuses, _ := client.calls(); statuses != 0 {
		t.Errorf("status fetches = %d, want 0", statuses)
	}
}

func TestSetMatrixEmptySourceDisconnects(t *testing.T) {
	client := &mockClient{descriptors: testFleet()}
	c := New(client, snapshot.NewStore(), nil, Config{})
	seedDevices(t, c)

	if err := c.SetMatrix(context.Background(), "", []string{"RX-01"}); err != nil {
		t.Fatalf("SetMatrix(\"\") error = %v", err)
	}

	client.mu.Lock()
	clears, sets := client.clearCalls, client.setMatrixCalls
	client.mu.Unlock()
	if clears != 1 || sets != 0 {
		t.Errorf("clear/set calls = %d/%d, want 1/0", clears, sets)
	}
}

func TestSetMatrixValidation(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		targets []string
		wantErr error
	}{
		{"no targets", "TX-01", nil, ErrNoTargets},
		{"unknown target", "TX-01", []string{"RX-99"}, device.ErrDeviceNotFound},
		{"target is an encoder", "TX-01", []string{"TX-02"}, device.ErrInvalidRole},
		{"unknown source", "TX-99", []string{"RX-01"}, device.ErrDeviceNotFound},
		{"source is a decoder", "RX-02", []string{"RX-01"}, device.ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{descriptors: testFleet()}
			c := New(client, snapshot.NewStore(), nil, Config{})
			seedDevices(t, c)

			err := c.SetMatrix(context.Background(), tt.source, tt.targets)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetMatrix() error = %v, want %v", err, tt.wantErr)
			}
			client.mu.Lock()
			sent := client.setMatrixCalls + client.clearCalls
			client.mu.Unlock()
			if sent != 0 {
				t.Errorf("command sent despite validation failure")
			}
		})
	}
}

func TestSetPowerSendsCommandWithoutRefresh(t *testing.T) {
	client := &mockClient{descriptors: testFleet()}
	c := New(client, snapshot.NewStore(), nil, Config{})
	seedDevices(t, c)

	before := c.ReadSnapshot()
	if err := c.SetPower(context.Background(), []string{"RX-01", "RX-02"}, device.PowerOff); err != nil {
		t.Fatalf("SetPower() error = %v", err)
	}

	client.mu.Lock()
	powerCalls, state := client.powerCalls, client.lastPowerState
	client.mu.Unlock()
	if powerCalls != 1 || state != device.PowerOff {
		t.Errorf("power calls = %d state %q, want 1 call off", powerCalls, state)
	}

	// No section refresh follows a power command.
	after := c.ReadSnapshot()
	for _, sec := range snapshot.AllSections() {
		if after.Version(sec) != before.Version(sec) {
			t.Errorf("section %s version changed after power command", sec)
		}
	}
	descriptors, statuses, assignments := client.calls()
	if descriptors != 1 || statuses != 0 || assignments != 0 {
		t.Errorf("fetches = %d/%d/%d, want 1/0/0 (seed only)",
			descriptors, statuses, assignments)
	}
}

func TestSetPowerValidation(t *testing.T) {
	tests := []struct {
		name    string
		targets []string
		state   device.PowerState
		wantErr error
	}{
		{"no targets", nil, device.PowerOn, ErrNoTargets},
		{"bad state", []string{"RX-01"}, device.PowerState("standby"), device.ErrInvalidPowerState},
		{"unknown target", []string{"RX-99"}, device.PowerOn, device.ErrDeviceNotFound},
		{"encoder target", []string{"TX-01"}, device.PowerOn, device.ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{descriptors: testFleet()}
			c := New(client, snapshot.NewStore(), nil, Config{})
			seedDevices(t, c)

			err := c.SetPower(context.Background(), tt.targets, tt.state)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetPower() error = %v, want %v", err, tt.wantErr)
			}
			client.mu.Lock()
			powerCalls := client.powerCalls
			client.mu.Unlock()
			if powerCalls != 0 {
				t.Error("command sent despite validation failure")
			}
		})
	}
}

func TestRestoreServesPersistedSnapshot(t *testing.T) {
	// Build a payload the same way the running system persists it.
	seed := snapshot.NewStore()
	if _, err := seed.ApplyDevices(testFleet()); err != nil {
		t.Fatalf("ApplyDevices() error = %v", err)
	}
	payload, version, updatedAt, err := seed.EncodeSection(snapshot.SectionDevices)
	if err != nil {
		t.Fatalf("EncodeSection() error = %v", err)
	}

	repo := newFakeRepo()
	repo.rows[snapshot.SectionDevices] = snapshot.PersistedSection{
		Section: snapshot.SectionDevices, Version: version,
		UpdatedAt: updatedAt, Payload: payload,
	}

	client := &mockClient{descriptors: testFleet()}
	c := New(client, snapshot.NewStore(), repo, Config{})

	if err := c.restore(context.Background()); err != nil {
		t.Fatalf("restore() error = %v", err)
	}

	snap := c.ReadSnapshot()
	if len(snap.Devices) != 4 {
		t.Errorf("restored devices = %d, want 4", len(snap.Devices))
	}
	if v := snap.Version(snapshot.SectionDevices); v != version {
		t.Errorf("restored version = %d, want %d", v, version)
	}
	// Restore happens before any transport traffic.
	if descriptors, _, _ := client.calls(); descriptors != 0 {
		t.Errorf("descriptor fetches during restore = %d, want 0", descriptors)
	}
}

func TestPersistSubscriberWritesSections(t *testing.T) {
	client := &mockClient{descriptors: testFleet()}
	repo := newFakeRepo()
	store := snapshot.NewStore()
	c := New(client, store, repo, Config{})

	c.persistID = store.Subscribe(c.persistSection)
	defer store.Unsubscribe(c.persistID)

	if err := c.RequestRefresh(context.Background(), snapshot.SectionDevices); err != nil {
		t.Fatalf("RequestRefresh() error = %v", err)
	}
	c.persistWG.Wait()

	rec, ok := repo.get(snapshot.SectionDevices)
	if !ok {
		t.Fatal("devices section not persisted")
	}
	if rec.Version != 1 {
		t.Errorf("persisted version = %d, want 1", rec.Version)
	}
	if len(rec.Payload) == 0 {
		t.Error("persisted payload is empty")
	}
}

func TestStartAndCloseLifecycle(t *testing.T) {
	client := &mockClient{
		descriptors: testFleet(),
		assignments: []device.Assignment{{Decoder: "RX-01", Encoder: "TX-01"}},
	}
	repo := newFakeRepo()
	c := New(client, snapshot.NewStore(), repo, Config{PollInterval: MinPollInterval})

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	// The first poll populates every section.
	if !waitFor(2*time.Second, func() bool {
		snap := c.ReadSnapshot()
		for _, sec := range snapshot.AllSections() {
			if snap.Version(sec) == 0 {
				return false
			}
		}
		return true
	}) {
		t.Fatal("first poll never populated the snapshot")
	}

	c.Close()

	// Persistence drained before Close returned.
	if _, ok := repo.get(snapshot.SectionDevices); !ok {
		t.Error("devices section not persisted by Close")
	}

	// Reads keep working after shutdown.
	if snap := c.ReadSnapshot(); len(snap.Devices) != 4 {
		t.Errorf("post-Close devices = %d, want 4", len(snap.Devices))
	}
}

func TestCorruptPersistenceStartsCold(t *testing.T) {
	repo := newFakeRepo()
	repo.loadErr = errors.New("disk corrupt")

	client := &mockClient{descriptors: testFleet()}
	c := New(client, snapshot.NewStore(), repo, Config{PollInterval: MinPollInterval})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want cold start despite restore failure", err)
	}
	c.Close()
}
