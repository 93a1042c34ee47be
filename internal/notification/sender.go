package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/pkg/logger"
)

// LogSender writes notices to the structured log. Used when no delivery
// channel is configured.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(_ context.Context, n Notice) error {
	logger.Info("Notification",
		zap.String("event_id", n.EventID),
		zap.String("reference", n.Reference),
		zap.String("kind", string(n.Kind)),
		zap.Strings("recipients", n.Recipients),
		zap.String("title", n.Title),
	)
	return nil
}

// MultiSender fans a notice out to every sender. All senders are tried;
// their errors are joined.
type MultiSender []Sender

// Send implements Sender.
func (m MultiSender) Send(ctx context.Context, n Notice) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// compile-time checks
var (
	_ Sender = LogSender{}
	_ Sender = MultiSender(nil)
	_ Sender = (*InboxSender)(nil)
	_ Sender = (*NATSSender)(nil)
)

func validateNotice(n Notice) error {
	switch {
	case n.EventID == "":
		return fmt.Errorf("event_id is required")
	case len(n.Recipients) == 0:
		return fmt.Errorf("at least one recipient is required")
	case n.Title == "":
		return fmt.Errorf("title is required")
	case n.Message == "":
		return fmt.Errorf("message is required")
	}
	return nil
}
