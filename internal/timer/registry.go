package timer

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/carbooking/internal/clock"
)

// Registry owns one Timer per watched booking. A booking detail view opens a
// watch when it appears and closes it when it is torn down; closing cancels
// the timer's ticks and detaches any in-flight cleanup from local state.
type Registry struct {
	clock   clock.Clock
	cleaner CleanupRunner

	mu      sync.Mutex
	watches map[string]*watch
	ctx     context.Context
	cancel  context.CancelFunc
}

type watch struct {
	timer  *Timer
	cancel context.CancelFunc
}

func NewRegistry(clk clock.Clock, cleaner CleanupRunner) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		clock:   clk,
		cleaner: cleaner,
		watches: make(map[string]*watch),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Watch starts a countdown for the booking, or re-deadlines the existing one.
func (r *Registry) Watch(bookingID string, expiresAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.watches[bookingID]; ok {
		w.timer.SetDeadline(expiresAt)
		return
	}

	t := New(r.clock, r.cleaner)
	t.SetDeadline(expiresAt)
	wctx, cancel := context.WithCancel(r.ctx)
	r.watches[bookingID] = &watch{timer: t, cancel: cancel}
	go t.Run(wctx)
}

// Countdown returns the booking's countdown state. The second return value
// is false when the booking is not being watched.
func (r *Registry) Countdown(bookingID string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watches[bookingID]
	if !ok {
		return State{}, false
	}
	return w.timer.Snapshot(), true
}

func (r *Registry) Unwatch(bookingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.watches[bookingID]; ok {
		w.cancel()
		delete(r.watches, bookingID)
	}
}

// Close tears down every watch.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel()
	r.watches = make(map[string]*watch)
}
