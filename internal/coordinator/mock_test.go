package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/avoip-core/internal/device"
)

// mockClient implements device.Client for coordinator tests. Behaviour is
// configured per-field; call counts are recorded under the mutex.
type mockClient struct {
	mu sync.Mutex

	descriptors     []device.Device
	descriptorErr   error
	descriptorDelay time.Duration
	descriptorCalls int

	statusFn    func(trueNames []string) ([]device.StatusResult, error)
	statusCalls int

	assignments     []device.Assignment
	assignmentErr   error
	assignmentDelay time.Duration
	assignmentCalls int

	setMatrixErr    error
	setMatrixCalls  int
	lastMatrixSrc   string
	lastMatrixTgts  []string
	clearMatrixErr  error
	clearCalls      int
	powerErr        error
	powerCalls      int
	lastPowerState  device.PowerState
	lastPowerTgts   []string
	subscribeErr    error
	handler         device.NotificationHandler
	unsubscribed    bool
}

func (m *mockClient) FetchDeviceDescriptors(ctx context.Context) ([]device.Device, error) {
	m.mu.Lock()
	m.descriptorCalls++
	delay := m.descriptorDelay
	devices := make([]device.Device, len(m.descriptors))
	copy(devices, m.descriptors)
	err := m.descriptorErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (m *mockClient) FetchDeviceStatus(ctx context.Context, trueNames []string) ([]device.StatusResult, error) {
	m.mu.Lock()
	m.statusCalls++
	fn := m.statusFn
	m.mu.Unlock()

	if fn == nil {
		results := make([]device.StatusResult, len(trueNames))
		for i, name := range trueNames {
			results[i] = device.StatusResult{TrueName: name}
		}
		return results, nil
	}
	return fn(trueNames)
}

func (m *mockClient) FetchMatrixAssignments(ctx context.Context) ([]device.Assignment, error) {
	m.mu.Lock()
	m.assignmentCalls++
	delay := m.assignmentDelay
	assignments := make([]device.Assignment, len(m.assignments))
	copy(assignments, m.assignments)
	err := m.assignmentErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (m *mockClient) SetMatrix(ctx context.Context, source string, targets []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMatrixCalls++
	m.lastMatrixSrc = source
	m.lastMatrixTgts = append([]string(nil), targets...)
	return m.setMatrixErr
}

func (m *mockClient) ClearMatrix(ctx context.Context, targets []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	m.lastMatrixTgts = append([]string(nil), targets...)
	return m.clearMatrixErr
}

func (m *mockClient) SetDisplayPower(ctx context.Context, targets []string, state device.PowerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.powerCalls++
	m.lastPowerState = state
	m.lastPowerTgts = append([]string(nil), targets...)
	return m.powerErr
}

func (m *mockClient) SubscribeNotifications(h device.NotificationHandler) (device.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	m.handler = h
	return &mockSubscription{client: m}, nil
}

// emit delivers an event through the registered notification handler.
func (m *mockClient) emit(ev device.Event) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (m *mockClient) calls() (descriptors, statuses, assignments int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.descriptorCalls, m.statusCalls, m.assignmentCalls
}

type mockSubscription struct {
	client *mockClient
}

func (s *mockSubscription) ID() string { return "mock-sub" }

func (s *mockSubscription) Unsubscribe() {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	s.client.handler = nil
	s.client.unsubscribed = true
}

// testFleet is a small mixed fleet used across tests.
func testFleet() []device.Device {
	return []device.Device{
		{TrueName: "TX-01", Alias: "Apple TV", Role: device.RoleEncoder, Online: true, IP: "10.0.0.11"},
		{TrueName: "TX-02", Alias: "Sky Box", Role: device.RoleEncoder, Online: true, IP: "10.0.0.12"},
		{TrueName: "RX-01", Alias: "Lounge TV", Role: device.RoleDecoder, Online: true, IP: "10.0.0.21"},
		{TrueName: "RX-02", Alias: "Kitchen TV", Role: device.RoleDecoder, Online: true, IP: "10.0.0.22"},
	}
}

// waitFor polls cond until it returns true or the deadline expires.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
