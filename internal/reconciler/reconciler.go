package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/carbooking/internal/backend"
	"github.com/Domenick1991/carbooking/internal/clock"
	"github.com/Domenick1991/carbooking/internal/domain"
	"github.com/Domenick1991/carbooking/internal/session"
	"github.com/sirupsen/logrus"
)

type BackendAPI interface {
	PendingBookings(ctx context.Context, actor string) (*backend.PendingResult, error)
}

type CleanupRunner interface {
	Run(ctx context.Context) (backend.CleanupResult, error)
}

// SnapshotStore persists the last applied view so a restart degrades to
// stale-but-present instead of empty.
type SnapshotStore interface {
	Load(ctx context.Context, actor string) ([]domain.PendingBooking, error)
	Save(ctx context.Context, actor string, items []domain.PendingBooking) error
	Clear(ctx context.Context, actor string) error
}

// View is the pending-bookings read model handed to consumers. It is a
// snapshot; the reconciler keeps exclusive ownership of the live state.
type View struct {
	Items     []domain.PendingBooking
	IsLoading bool
	LastError string
}

func (v View) HasPending() bool { return len(v.Items) > 0 }

func (v View) HasExpired() bool {
	for _, item := range v.Items {
		if item.IsExpired {
			return true
		}
	}
	return false
}

// Reconciler keeps an eventually-consistent local view of the signed-in
// actor's pending bookings. It fetches immediately when an actor appears, on
// a fixed interval while one is present, and once more shortly after the
// backend reports it ran a cleanup during a fetch.
type Reconciler struct {
	backend  BackendAPI
	sessions session.Provider
	cleaner  CleanupRunner
	store    SnapshotStore
	clock    clock.Clock

	interval      time.Duration
	followUpDelay time.Duration

	mu              sync.Mutex
	runCtx          context.Context
	actor           string
	items           []domain.PendingBooking
	loading         bool
	lastErr         string
	seq             uint64
	applied         uint64
	followUpArmed   bool
	cleanupInFlight bool

	followCh chan struct{}
}

func New(
	api BackendAPI,
	sessions session.Provider,
	cleaner CleanupRunner,
	store SnapshotStore,
	clk clock.Clock,
	interval, followUpDelay time.Duration,
) *Reconciler {
	return &Reconciler{
		backend:       api,
		sessions:      sessions,
		cleaner:       cleaner,
		store:         store,
		clock:         clk,
		interval:      interval,
		followUpDelay: followUpDelay,
		followCh:      make(chan struct{}, 1),
	}
}

// Run drives the reconciliation loop until ctx is cancelled. Cancelling the
// context also drops any scheduled follow-up refresh.
func (r *Reconciler) Run(ctx context.Context) {
	r.mu.Lock()
	r.runCtx = ctx
	r.mu.Unlock()

	logrus.WithField("interval", r.interval.String()).Info("pending bookings reconciler started")

	r.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("pending bookings reconciler stopped")
			return
		case <-r.clock.After(r.interval):
			r.sync(ctx)
		case <-r.followCh:
			r.sync(ctx)
		}
	}
}

// Snapshot returns a copy of the current view.
func (r *Reconciler) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]domain.PendingBooking, len(r.items))
	copy(items, r.items)
	return View{Items: items, IsLoading: r.loading, LastError: r.lastErr}
}

// Refresh runs one fetch for the signed-in actor and returns once the remote
// call completes. domain.ErrNoActor when nobody is signed in.
func (r *Reconciler) Refresh(ctx context.Context) error {
	sess, err := r.sessions.Current(ctx)
	if err != nil {
		return err
	}
	r.handleActor(ctx, sess.Actor)
	return r.refresh(ctx, sess.Actor)
}

func (r *Reconciler) sync(ctx context.Context) {
	sess, err := r.sessions.Current(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoActor) {
			r.handleSignOut(ctx)
		} else {
			logrus.WithError(err).Warn("failed to resolve session")
		}
		return
	}

	r.handleActor(ctx, sess.Actor)
	if err := r.refresh(ctx, sess.Actor); err != nil {
		logrus.WithError(err).Warn("pending bookings refresh failed")
	}
}

// handleActor resets the view when the signed-in actor changes, seeding it
// from the persisted snapshot when one exists.
func (r *Reconciler) handleActor(ctx context.Context, actor string) {
	r.mu.Lock()
	if r.actor == actor {
		r.mu.Unlock()
		return
	}
	r.actor = actor
	r.items = nil
	r.lastErr = ""
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	items, err := r.store.Load(ctx, actor)
	if err != nil {
		logrus.WithError(err).Debug("failed to load pending bookings snapshot")
		return
	}
	r.mu.Lock()
	if r.actor == actor && r.items == nil {
		r.items = items
	}
	r.mu.Unlock()
}

func (r *Reconciler) handleSignOut(ctx context.Context) {
	r.mu.Lock()
	if r.actor == "" {
		r.mu.Unlock()
		return
	}
	actor := r.actor
	r.actor = ""
	r.items = nil
	r.lastErr = ""
	r.loading = false
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Clear(ctx, actor); err != nil {
			logrus.WithError(err).Debug("failed to clear pending bookings snapshot")
		}
	}
}

func (r *Reconciler) refresh(ctx context.Context, actor string) error {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.loading = true
	r.mu.Unlock()

	res, err := r.backend.PendingBookings(ctx, actor)

	r.mu.Lock()
	if seq <= r.applied {
		// a newer fetch already applied its response; this one is stale
		r.mu.Unlock()
		return err
	}
	r.applied = seq

	if r.actor != actor {
		// signed out or switched actors while the fetch was in flight
		r.mu.Unlock()
		return err
	}

	if err != nil {
		// keep the previous items: stale-but-present beats empty
		r.lastErr = fmt.Sprintf("could not refresh reservations: %v", err)
		r.loading = false
		r.mu.Unlock()
		return err
	}

	now := r.clock.Now()
	items := make([]domain.PendingBooking, 0, len(res.Bookings))
	hasExpired := false
	for _, b := range res.Bookings {
		b.IsExpired = b.ExpiresAt != nil && !b.ExpiresAt.After(now)
		hasExpired = hasExpired || b.IsExpired
		items = append(items, b)
	}
	r.items = items
	r.lastErr = ""
	r.loading = false
	r.mu.Unlock()

	if r.store != nil {
		if serr := r.store.Save(ctx, actor, items); serr != nil {
			logrus.WithError(serr).Debug("failed to persist pending bookings snapshot")
		}
	}

	// background work outlives the triggering call: a manual refresh hands
	// in a request context that dies when the response is written, which
	// must not abort the cleanup or drop the follow-up refresh
	if hasExpired {
		r.runCleanup(r.owningContext())
	}
	if res.CleanupTriggered || hasExpired {
		r.scheduleFollowUp(r.owningContext())
	}
	return nil
}

// owningContext is the Run loop's context, so scheduled work is cancelled by
// reconciler teardown and nothing else. Background before Run starts.
func (r *Reconciler) owningContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runCtx != nil {
		return r.runCtx
	}
	return context.Background()
}

func (r *Reconciler) runCleanup(ctx context.Context) {
	r.mu.Lock()
	if r.cleanupInFlight {
		r.mu.Unlock()
		return
	}
	r.cleanupInFlight = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.cleanupInFlight = false
			r.mu.Unlock()
		}()
		if _, err := r.cleaner.Run(ctx); err != nil {
			logrus.WithError(err).Warn("scheduled booking cleanup failed")
		}
	}()
}

// scheduleFollowUp arms at most one delayed refresh: one triggering response
// gets one follow-up, and overlapping triggers collapse into it.
func (r *Reconciler) scheduleFollowUp(ctx context.Context) {
	r.mu.Lock()
	if r.followUpArmed {
		r.mu.Unlock()
		return
	}
	r.followUpArmed = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.followUpArmed = false
			r.mu.Unlock()
		}()
		select {
		case <-ctx.Done():
		case <-r.clock.After(r.followUpDelay):
			select {
			case r.followCh <- struct{}{}:
			default:
			}
		}
	}()
}
