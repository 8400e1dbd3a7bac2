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

func TestRefreshAllSectionsPopulatesStore(t *testing.T) {
	client := &mockClient{
		descriptors: testFleet(),
		assignments: []device.Assignment{
			{Decoder: "RX-01", Encoder: "TX-01"},
			{Decoder: "RX-02", Encoder: "TX-02"},
		},
	}
	store := snapshot.NewStore()
	engine := NewEngine(client, store, 0)

	if err := engine.Refresh(context.Background(), snapshot.AllSections()...); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	snap := store.Read()
	if len(snap.Devices) != 4 {
		t.Errorf("devices = %d, want 4", len(snap.Devices))
	}
	if len(snap.Statuses) != 4 {
		t.Errorf("statuses = %d, want 4", len(snap.Statuses))
	}
	if got := snap.Assignments["RX-01"]; got != "TX-01" {
		t.Errorf("RX-01 assignment = %q, want TX-01", got)
	}
	for _, sec := range snapshot.AllSections() {
		if v := snap.Version(sec); v != 1 {
			t.Errorf("version(%s) = %d, want 1", sec, v)
		}
	}

	// The devices refresh and the status refresh's fleet enumeration share
	// one descriptor fetch through the cache.
	descriptors, _, _ := client.calls()
	if descriptors != 1 {
		t.Errorf("descriptor fetches = %d, want 1", descriptors)
	}
}

func TestRefreshJoinsInFlightFetch(t *testing.T) {
	client := &mockClient{
		descriptors:     testFleet(),
		assignments:     []device.Assignment{{Decoder: "RX-01", Encoder: "TX-01"}},
		assignmentDelay: 50 * time.Millisecond,
	}
	store := snapshot.NewStore()
	engine := NewEngine(client, store, 0)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = engine.Refresh(context.Background(), snapshot.SectionMatrix)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d error = %v", i, err)
		}
	}

	_, _, assignments := client.calls()
	if assignments != 1 {
		t.Errorf("assignment fetches = %d, want 1 (single-flight)", assignments)
	}
	if v := store.Read().Version(snapshot.SectionMatrix); v != 1 {
		t.Errorf("matrix version = %d, want 1", v)
	}
}

func TestRefreshSectionFailureLeavesOthersIntact(t *testing.T) {
	client := &mockClient{
		descriptors:   testFleet(),
		assignmentErr: errors.New("controller timeout"),
	}
	store := snapshot.NewStore()
	engine := NewEngine(client, store, 0)

	err := engine.Refresh(context.Background(), snapshot.AllSections()...)
	if err == nil {
		t.Fatal("Refresh() error = nil, want matrix failure")
	}

	snap := store.Read()
	if v := snap.Version(snapshot.SectionDevices); v != 1 {
		t.Errorf("devices version = %d, want 1", v)
	}
	if v := snap.Version(snapshot.SectionDeviceStatus); v != 1 {
		t.Errorf("status version = %d, want 1", v)
	}
	// Failed section keeps its prior (never-fetched) state.
	if v := snap.Version(snapshot.SectionMatrix); v != 0 {
		t.Errorf("matrix version = %d, want 0", v)
	}
}

func TestRefreshFailureKeepsStaleSectionValue(t *testing.T) {
	client := &mockClient{
		descriptors: testFleet(),
		assignments: []device.Assignment{{Decoder: "RX-01", Encoder: "TX-01"}},
	}
	store := snapshot.NewStore()
	engine := NewEngine(client, store, 0)

	if err := engine.Refresh(context.Background(), snapshot.SectionMatrix); err != nil {
		t.Fatalf("seed Refresh() error = %v", err)
	}

	client.mu.Lock()
	client.assignmentErr = errors.New("controller timeout")
	client.mu.Unlock()

	if err := engine.Refresh(context.Background(), snapshot.SectionMatrix); err == nil {
		t.Fatal("Refresh() error = nil, want failure")
	}

	snap := store.Read()
	if got := snap.Assignments["RX-01"]; got != "TX-01" {
		t.Errorf("stale assignment lost: RX-01 = %q, want TX-01", got)
	}
	if v := snap.Version(snapshot.SectionMatrix); v != 1 {
		t.Errorf("matrix version = %d, want 1 (unchanged)", v)
	}
}

func TestRefreshPerDeviceFailureMarksOffline(t *testing.T) {
	client := &mockClient{
		descriptors: testFleet(),
		statusFn: func(names []string) ([]device.StatusResult, error) {
			results := make([]device.StatusResult, 0, len(names))
			for _, name := range names {
				if name == "RX-02" {
					results = append(results, device.StatusResult{
						TrueName: name,
						Err:      errors.New("no response"),
					})
					continue
				}
				results = append(results, device.StatusResult{
					TrueName: name,
					Status:   device.Status{VideoOutputActive: true},
				})
			}
			return results, nil
		},
	}
	store := snapshot.NewStore()
	engine := NewEngine(client, store, 0)

	ctx := context.Background()
	if err := engine.Refresh(ctx, snapshot.SectionDevices); err != nil {
		t.Fatalf("devices Refresh() error = %v", err)
	}
	err := engine.Refresh(ctx, snapshot.SectionDeviceStatus)
	if err != nil {
		t.Fatalf("status Refresh() error = %v (per-device failure must not fail the section)", err)
	}

	snap := store.Read()
	if len(snap.Statuses) != 3 {
		t.Errorf("statuses = %d, want 3 (one device unreachable)", len(snap.Statuses))
	}
	if snap.Devices["RX-02"].Online {
		t.Error("RX-02 still online, want offline after status failure")
	}
	if !snap.Devices["RX-01"].Online {
		t.Error("RX-01 went offline, want online")
	}
}

func TestRefreshValidatesSections(t *testing.T) {
	engine := NewEngine(&mockClient{}, snapshot.NewStore(), 0)

	if err := engine.Refresh(context.Background()); !errors.Is(err, ErrNoSections) {
		t.Errorf("Refresh() error = %v, want ErrNoSections", err)
	}

	err := engine.Refresh(context.Background(), snapshot.Section("bogus"))
	if !errors.Is(err, snapshot.ErrUnknownSection) {
		t.Errorf("Refresh(bogus) error = %v, want ErrUnknownSection", err)
	}
}

func TestRefreshDeduplicatesSections(t *testing.T) {
	client := &mockClient{
		assignments: []device.Assignment{{Decoder: "RX-01", Encoder: "TX-01"}},
	}
	store := snapshot.NewStore()
	engine := NewEngine(client, store, 0)

	err := engine.Refresh(context.Background(),
		snapshot.SectionMatrix, snapshot.SectionMatrix, snapshot.SectionMatrix)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if v := store.Read().Version(snapshot.SectionMatrix); v != 1 {
		t.Errorf("matrix version = %d, want 1", v)
	}
}

func TestDescriptorCacheAndInvalidate(t *testing.T) {
	client := &mockClient{descriptors: testFleet()}
	store := snapshot.NewStore()
	engine := NewEngine(client, store, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := engine.Refresh(ctx, snapshot.SectionDevices); err != nil {
			t.Fatalf("Refresh() #%d error = %v", i, err)
		}
	}
	if descriptors, _, _ := client.calls(); descriptors != 1 {
		t.Fatalf("descriptor fetches = %d, want 1 (cached)", descriptors)
	}

	engine.InvalidateDescriptors()

	if err := engine.Refresh(ctx, snapshot.SectionDevices); err != nil {
		t.Fatalf("Refresh() after invalidate error = %v", err)
	}
	if descriptors, _, _ := client.calls(); descriptors != 2 {
		t.Errorf("descriptor fetches = %d, want 2 after invalidation", descriptors)
	}
}

func TestRefreshCancelledContextDiscardsResult(t *testing.T) {
	client := &mockClient{
		descriptors:     testFleet(),
		descriptorDelay: 100 * time.Millisecond,
	}
	store := snapshot.NewStore()
	engine := NewEngine(client, store, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := engine.Refresh(ctx, snapshot.SectionDevices)
	if err == nil {
		t.Fatal("Refresh() error = nil, want cancellation")
	}

	if v := store.Read().Version(snapshot.SectionDevices); v != 0 {
		t.Errorf("devices version = %d, want 0 (no partial apply)", v)
	}
}
