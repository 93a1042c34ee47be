package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/notification"
	"safeguard.io/safeguard/internal/pkg/logger"
)

// NotificationDeliveryArgs carries one planned notice.
type NotificationDeliveryArgs struct {
	Notice notification.Notice `json:"notice"`
}

// Kind returns the job kind identifier for notification delivery.
func (NotificationDeliveryArgs) Kind() string { return "notification_delivery" }

// InsertOpts makes delivery at-most-once: a failed attempt is discarded.
func (NotificationDeliveryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
	}
}

// NotificationDeliveryWorker sends queued notices.
type NotificationDeliveryWorker struct {
	river.WorkerDefaults[NotificationDeliveryArgs]
	sender  notification.Sender
	timeout time.Duration
}

// NewNotificationDeliveryWorker creates a delivery worker.
func NewNotificationDeliveryWorker(sender notification.Sender, timeout time.Duration) *NotificationDeliveryWorker {
	return &NotificationDeliveryWorker{sender: sender, timeout: timeout}
}

// Timeout bounds a single delivery.
func (w *NotificationDeliveryWorker) Timeout(*river.Job[NotificationDeliveryArgs]) time.Duration {
	return w.timeout
}

// Work sends the notice. Errors are recorded by River and not retried.
func (w *NotificationDeliveryWorker) Work(ctx context.Context, job *river.Job[NotificationDeliveryArgs]) error {
	if w == nil || w.sender == nil {
		return fmt.Errorf("notification delivery worker is not initialized")
	}
	n := job.Args.Notice
	if err := w.sender.Send(ctx, n); err != nil {
		notification.RecordDelivery(ctx, "river", n.Kind, "failed")
		return fmt.Errorf("deliver %s for event %s: %w", n.Kind, n.EventID, err)
	}
	notification.RecordDelivery(ctx, "river", n.Kind, "delivered")
	return nil
}

// Inserter is the subset of *river.Client[pgx.Tx] used by RiverDispatcher.
type Inserter interface {
	InsertMany(ctx context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error)
	InsertManyTx(ctx context.Context, tx pgx.Tx, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error)
}

// RiverDispatcher queues notices as notification_delivery jobs.
type RiverDispatcher struct {
	client Inserter
}

// NewRiverDispatcher creates a dispatcher over a River client.
func NewRiverDispatcher(client Inserter) *RiverDispatcher {
	return &RiverDispatcher{client: client}
}

// Dispatch implements notification.Dispatcher.
func (d *RiverDispatcher) Dispatch(ctx context.Context, notices []notification.Notice) error {
	if len(notices) == 0 {
		return nil
	}
	if _, err := d.client.InsertMany(ctx, insertParams(notices)); err != nil {
		return fmt.Errorf("enqueue %d notification deliveries: %w", len(notices), err)
	}
	return nil
}

// EnqueueTx plans the notices for a committed write and queues them inside
// the write transaction, so a notice exists only if the transition
// committed. It has the signature of a postgres.TxHook. The insert runs in
// a savepoint: a failed enqueue is logged and the transition still commits.
func (d *RiverDispatcher) EnqueueTx(ctx context.Context, tx pgx.Tx, e *domain.Event, entry domain.AuditEntry) error {
	notices := notification.PlanFromAudit(e, entry)
	if len(notices) == 0 {
		return nil
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		dropNotices(ctx, e, entry, notices, fmt.Errorf("begin notification savepoint: %w", err))
		return nil
	}
	if _, err := d.client.InsertManyTx(ctx, sp, insertParams(notices)); err != nil {
		_ = sp.Rollback(ctx)
		dropNotices(ctx, e, entry, notices, err)
		return nil
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release notification savepoint: %w", err)
	}
	return nil
}

func dropNotices(ctx context.Context, e *domain.Event, entry domain.AuditEntry, notices []notification.Notice, err error) {
	for _, n := range notices {
		notification.RecordDelivery(ctx, "river", n.Kind, "dropped")
	}
	logger.Error("Notification enqueue failed, transition kept",
		zap.String("event_id", e.ID),
		zap.String("action", string(entry.Action)),
		zap.Int("notices", len(notices)),
		zap.Error(err),
	)
}

func insertParams(notices []notification.Notice) []river.InsertManyParams {
	params := make([]river.InsertManyParams, len(notices))
	for i, n := range notices {
		params[i] = river.InsertManyParams{Args: NotificationDeliveryArgs{Notice: n}}
	}
	return params
}

var _ notification.Dispatcher = (*RiverDispatcher)(nil)
