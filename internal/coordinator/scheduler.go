package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/avoip-core/internal/snapshot"
)

// Poll interval bounds. Values outside this range are clamped at
// construction; a reasonable floor keeps a misconfigured deployment from
// hammering the controller.
const (
	MinPollInterval     = 10 * time.Second
	MaxPollInterval     = 300 * time.Second
	DefaultPollInterval = 60 * time.Second
)

// maxBackoffMultiplier caps the failure backoff at interval * 2^5.
const maxBackoffMultiplier = 32

// PollState describes what the scheduler is currently doing.
type PollState string

const (
	PollIdle     PollState = "idle"
	PollFetching PollState = "fetching"
	PollUpdated  PollState = "updated"
	PollFailed   PollState = "failed"
)

// Scheduler drives periodic full refreshes.
//
// On success the next tick fires after the configured interval. On failure
// the wait doubles per consecutive failure, capped at interval *
// maxBackoffMultiplier, and resets on the first success. A failed poll never
// touches the snapshot store; readers keep seeing the last good data.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	state    PollState
	failures int
	lastErr  error
}

// NewScheduler creates a poll scheduler. A zero interval selects
// DefaultPollInterval; out-of-range values are clamped.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	switch {
	case interval <= 0:
		interval = DefaultPollInterval
	case interval < MinPollInterval:
		interval = MinPollInterval
	case interval > MaxPollInterval:
		interval = MaxPollInterval
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   noopLogger{},
		state:    PollIdle,
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the poll loop. The first poll runs immediately so the
// snapshot is populated before the first interval elapses.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.started = true
	s.logger.Info("poll scheduler started", "interval", s.interval.String())
	return nil
}

// Stop halts the poll loop and waits for any in-progress poll to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// State reports the scheduler's current phase and the error from the most
// recent failed poll, if any.
func (s *Scheduler) State() (PollState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastErr
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(0) // first poll fires immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.poll(ctx)

		if ctx.Err() != nil {
			return
		}
		timer.Reset(s.nextWait())
	}
}

// poll runs one full refresh and records the outcome.
func (s *Scheduler) poll(ctx context.Context) {
	s.setState(PollFetching, nil)

	err := s.engine.Refresh(ctx, snapshot.AllSections()...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.failures++
		s.state = PollFailed
		s.lastErr = err
		s.logger.Warn("poll failed",
			"consecutive_failures", s.failures, "error", err)
		return
	}

	if s.failures > 0 {
		s.logger.Info("poll recovered", "after_failures", s.failures)
	}
	s.failures = 0
	s.state = PollUpdated
	s.lastErr = nil
}

// nextWait computes the delay before the next poll: the base interval after
// success, doubled per consecutive failure up to the cap.
func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures == 0 {
		return s.interval
	}

	multiplier := 1
	for i := 0; i < s.failures && multiplier < maxBackoffMultiplier; i++ {
		multiplier *= 2
	}
	return s.interval * time.Duration(multiplier)
}

func (s *Scheduler) setState(state PollState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.lastErr = err
}
