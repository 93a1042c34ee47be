package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/pkg/logger"
	"safeguard.io/safeguard/internal/pkg/worker"
)

// Deliver sends one notice with a timeout, logging and counting the
// outcome. It never returns an error: delivery is best-effort.
func Deliver(ctx context.Context, sender Sender, n Notice, timeout time.Duration, channel string) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := sender.Send(ctx, n); err != nil {
		RecordDelivery(ctx, channel, n.Kind, "failed")
		logger.Error("Notification delivery failed",
			zap.String("event_id", n.EventID),
			zap.String("kind", string(n.Kind)),
			zap.Strings("recipients", n.Recipients),
			zap.Error(err),
		)
		return
	}
	RecordDelivery(ctx, channel, n.Kind, "delivered")
}

// PoolDispatcher delivers notices on the notify worker pool, detached from
// the request context so a finished request does not cancel delivery.
type PoolDispatcher struct {
	pools   *worker.Pools
	sender  Sender
	timeout time.Duration
}

// NewPoolDispatcher creates a dispatcher over the shared worker pools.
func NewPoolDispatcher(pools *worker.Pools, sender Sender, timeout time.Duration) *PoolDispatcher {
	return &PoolDispatcher{pools: pools, sender: sender, timeout: timeout}
}

// Dispatch implements Dispatcher.
func (d *PoolDispatcher) Dispatch(_ context.Context, notices []Notice) error {
	for _, n := range notices {
		if err := d.pools.Go(worker.Notify, func(ctx context.Context) {
			Deliver(ctx, d.sender, n, d.timeout, "pool")
		}); err != nil {
			return err
		}
	}
	return nil
}

// SyncDispatcher delivers inline. Used by tools and tests that need delivery
// to have happened when the transition returns.
type SyncDispatcher struct {
	Sender  Sender
	Timeout time.Duration
}

// Dispatch implements Dispatcher.
func (d SyncDispatcher) Dispatch(ctx context.Context, notices []Notice) error {
	for _, n := range notices {
		Deliver(ctx, d.Sender, n, d.Timeout, "sync")
	}
	return nil
}

var (
	_ Dispatcher = (*PoolDispatcher)(nil)
	_ Dispatcher = SyncDispatcher{}
)
