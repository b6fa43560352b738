package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/carbooking/internal/backend"
	"github.com/Domenick1991/carbooking/internal/notify"
	"github.com/sirupsen/logrus"
)

type cleanupCaller interface {
	Cleanup(ctx context.Context) (*backend.CleanupResult, error)
}

// Invoker runs the backend's "reconcile expired bookings" operation and
// notifies the actor when anything was actually released. Stateless, so the
// expiration timer and the reconciler can both call it without coordination;
// the backend operation itself is idempotent.
type Invoker struct {
	backend  cleanupCaller
	notifier notify.Sink
}

func NewInvoker(backend cleanupCaller, notifier notify.Sink) *Invoker {
	return &Invoker{backend: backend, notifier: notifier}
}

// Run performs one cleanup call. On transport failure the result is a
// zero-count no-op; the error is returned for callers that want to surface
// it, but no notification is emitted and nothing is retried here.
func (i *Invoker) Run(ctx context.Context) (backend.CleanupResult, error) {
	res, err := i.backend.Cleanup(ctx)
	if err != nil {
		logrus.WithError(err).Warn("booking cleanup failed")
		return backend.CleanupResult{}, fmt.Errorf("cleanup bookings: %w", err)
	}

	if res.ExpiredCount > 0 {
		logrus.WithField("expired_count", res.ExpiredCount).Info("expired bookings cleaned up")
		i.notifier.Notify(ctx, cleanupMessage(res.ExpiredCount), notify.Options{
			Duration: 4 * time.Second,
			Position: "bottom",
		})
	}

	return *res, nil
}

func cleanupMessage(count int) string {
	if count == 1 {
		return "An expired reservation was released"
	}
	return fmt.Sprintf("%d expired reservations were released", count)
}
