package escalation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clinicport/emergency-alerts/internal/config"
	"github.com/clinicport/emergency-alerts/internal/metrics"
)

// Hooks carries the cue callbacks. Both are optional; a nil hook is skipped.
// Hooks run on the scheduler's own goroutines and must not call back into
// the scheduler.
type Hooks struct {
	// OnTick fires at the escalation cadence while any alert is outstanding.
	OnTick func()
	// OnStop fires once when the active set becomes empty.
	OnStop func()
}

// Scheduler re-triggers an urgency cue while the responder's active alert
// set is non-empty. It has two states, idle and escalating, and transitions
// the instant the set size crosses zero in either direction.
type Scheduler struct {
	// interval is the cadence between ticks.
	interval time.Duration
	// hooks receives the cue callbacks.
	hooks Hooks

	// muted suppresses tick delivery without touching the state machine,
	// so unmuting resumes at the existing phase. Atomic because the cadence
	// goroutine reads it without taking mu.
	muted atomic.Bool

	// mu protects the fields below.
	mu sync.Mutex
	// escalating is true while the cadence runs.
	escalating bool
	// cancelTick stops the running cadence goroutine.
	cancelTick context.CancelFunc
	// tickDone is closed when the cadence goroutine exits.
	tickDone chan struct{}
	// stopped refuses further updates after Stop.
	stopped bool
}

// NewScheduler creates an idle scheduler with the given cadence.
func NewScheduler(interval time.Duration, hooks Hooks) *Scheduler {
	if interval <= 0 {
		interval = config.DefaultEscalationInterval
	}

	return &Scheduler{
		interval: interval,
		hooks:    hooks,
	}
}

// Update hands the scheduler the current active set size. Growing a
// non-empty set does not restart or stack the cadence; it continues at its
// existing phase.
func (s *Scheduler) Update(activeCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	switch {
	case activeCount > 0 && !s.escalating:
		s.startLocked()
	case activeCount == 0 && s.escalating:
		s.stopLocked(true)
	}
}

// SetMuted suppresses or restores the audible cue. The visual list and the
// state machine are unaffected.
func (s *Scheduler) SetMuted(muted bool) {
	s.muted.Store(muted)
}

// Escalating reports whether the cadence is currently running.
func (s *Scheduler) Escalating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.escalating
}

// Stop halts the cadence immediately and refuses further updates.
// Used when the responder session ends.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.stopped = true

	if s.escalating {
		// Session teardown is not an "all clear", skip the stop cue.
		s.stopLocked(false)
	}
}

// startLocked launches the cadence goroutine. Caller holds s.mu.
func (s *Scheduler) startLocked() {
	s.escalating = true
	metrics.SessionsEscalating.Inc()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTick = cancel

	done := make(chan struct{})
	s.tickDone = done

	go s.run(ctx, done)
}

// stopLocked halts the cadence goroutine. Caller holds s.mu.
func (s *Scheduler) stopLocked(notify bool) {
	s.escalating = false
	metrics.SessionsEscalating.Dec()

	s.cancelTick()
	s.cancelTick = nil

	// The goroutine never takes s.mu, so waiting under the lock is safe and
	// guarantees no tick fires after the state flipped to idle.
	<-s.tickDone
	s.tickDone = nil

	if notify && s.hooks.OnStop != nil {
		s.hooks.OnStop()
	}
}

// run emits ticks at the cadence until canceled. The first tick fires
// immediately: a fresh emergency must cue at once, not one interval later.
func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick delivers one cue unless muted.
func (s *Scheduler) tick() {
	if s.muted.Load() || s.hooks.OnTick == nil {
		return
	}

	s.hooks.OnTick()
}
