package notification

import "context"

//go:generate mockgen -destination=mock_sender.go -package=notification . Sender

// Sender delivers a notice to its recipients.
type Sender interface {
	Send(ctx context.Context, n Notice) error
}

// Dispatcher hands planned notices to a Sender outside the request path.
// Dispatch must not block on delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, notices []Notice) error
}
