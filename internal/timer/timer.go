package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/carbooking/internal/backend"
	"github.com/Domenick1991/carbooking/internal/clock"
	"github.com/sirupsen/logrus"
)

const tickInterval = time.Second

// CleanupRunner is what the timer fires when a booking expires.
type CleanupRunner interface {
	Run(ctx context.Context) (backend.CleanupResult, error)
}

// State is the countdown read model published on every tick.
// SecondsRemaining is nil when the booking has no deadline.
type State struct {
	SecondsRemaining *int64
	Expired          bool
	Busy             bool
	Formatted        string
}

// Timer tracks a single booking's expiry deadline. It owns its schedule:
// the next tick is armed only after the previous one is handled, so ticks
// never overlap. Expiry fires exactly once per deadline value; replacing the
// deadline resets the countdown without a spurious expiry.
type Timer struct {
	clock   clock.Clock
	cleaner CleanupRunner

	mu       sync.Mutex
	deadline *time.Time
	firedFor *time.Time
	state    State
	busy     bool
	stopped  bool

	kick chan struct{}
}

func New(clk clock.Clock, cleaner CleanupRunner) *Timer {
	return &Timer{
		clock:   clk,
		cleaner: cleaner,
		kick:    make(chan struct{}, 1),
	}
}

// SetDeadline replaces the deadline the timer counts toward. nil disables
// the countdown. The change takes effect immediately, not on the next tick.
func (t *Timer) SetDeadline(deadline *time.Time) {
	t.mu.Lock()
	if equalDeadline(t.deadline, deadline) {
		t.mu.Unlock()
		return
	}
	if deadline != nil {
		d := *deadline
		t.deadline = &d
	} else {
		t.deadline = nil
	}
	t.mu.Unlock()

	select {
	case t.kick <- struct{}{}:
	default:
	}
}

// Run drives the tick loop until ctx is cancelled. The first evaluation
// happens immediately, so a deadline already in the past expires without
// waiting a full tick.
func (t *Timer) Run(ctx context.Context) {
	defer t.markStopped()

	for {
		t.evaluate(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.clock.After(tickInterval):
		case <-t.kick:
		}
	}
}

// Snapshot returns the last published countdown state.
func (t *Timer) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	if s.SecondsRemaining != nil {
		v := *s.SecondsRemaining
		s.SecondsRemaining = &v
	}
	s.Busy = t.busy
	return s
}

func (t *Timer) evaluate(ctx context.Context) {
	t.mu.Lock()
	if t.deadline == nil {
		t.state = State{}
		t.mu.Unlock()
		return
	}

	deadline := *t.deadline
	remaining := int64(deadline.Sub(t.clock.Now()) / time.Second)
	if remaining < 0 {
		// clock skew: clamp and treat as expired
		remaining = 0
	}
	expired := remaining == 0

	fire := expired && (t.firedFor == nil || !t.firedFor.Equal(deadline))
	if fire {
		t.firedFor = &deadline
	}

	t.state = State{
		SecondsRemaining: &remaining,
		Expired:          expired,
		Busy:             t.busy,
		Formatted:        FormatCountdown(remaining),
	}
	t.mu.Unlock()

	if fire {
		t.setBusy(true)
		go func() {
			defer t.setBusy(false)
			if _, err := t.cleaner.Run(ctx); err != nil {
				logrus.WithError(err).Warn("cleanup after booking expiry failed")
			}
		}()
	}
}

func (t *Timer) setBusy(busy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.busy = busy
}

func (t *Timer) markStopped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.busy = false
}

func equalDeadline(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// FormatCountdown renders remaining seconds as MM:SS, widening to HH:MM:SS
// once an hour or more remains so long holds are not misdisplayed.
func FormatCountdown(seconds int64) string {
	if seconds >= 3600 {
		return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
