package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used by NATSSender.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSender publishes each notice as JSON to <prefix>.<kind>. Role
// addresses are left for subscribers to resolve.
type NATSSender struct {
	pub    Publisher
	prefix string
}

// NewNATSSender creates a sender publishing under prefix.
func NewNATSSender(pub Publisher, prefix string) *NATSSender {
	return &NATSSender{pub: pub, prefix: prefix}
}

// Subject returns the subject a notice of kind is published to.
func (s *NATSSender) Subject(kind Kind) string {
	return s.prefix + "." + kind.Subject()
}

// Send implements Sender.
func (s *NATSSender) Send(ctx context.Context, n Notice) error {
	if err := validateNotice(n); err != nil {
		return fmt.Errorf("notification invalid: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	if err := s.pub.Publish(s.Subject(n.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", s.Subject(n.Kind), err)
	}
	return nil
}

// ConnectNATS opens a connection that keeps reconnecting in the background.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}
