package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/pkg/logger"
)

// ErrNotificationNotFound is returned when an inbox item does not exist for
// the reader.
var ErrNotificationNotFound = errors.New("notification not found")

// InboxSender writes notices to the in-app inbox table, one row per
// recipient. Role broadcasts are stored once under their role address and
// shown to every holder of the role.
type InboxSender struct {
	pool *pgxpool.Pool
}

// NewInboxSender creates a new inbox sender.
func NewInboxSender(pool *pgxpool.Pool) *InboxSender {
	return &InboxSender{pool: pool}
}

// Send stores the notice for each recipient. Best-effort: a failed row is
// logged and the remaining recipients are still written.
func (s *InboxSender) Send(ctx context.Context, n Notice) error {
	if err := validateNotice(n); err != nil {
		return fmt.Errorf("notification invalid: %w", err)
	}
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var failCount int
	for _, recipient := range n.Recipients {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate notification id: %w", err)
		}
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO notifications (id, tenant_id, recipient, event_id, reference, kind, title, message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id.String(), n.TenantID, recipient, n.EventID, n.Reference, string(n.Kind), n.Title, n.Message, createdAt,
		); err != nil {
			failCount++
			logger.Error("Inbox notification write failed",
				zap.String("recipient", recipient),
				zap.String("kind", string(n.Kind)),
				zap.Error(err),
			)
		}
	}

	if failCount > 0 {
		return fmt.Errorf("inbox delivery failed for %d/%d recipients", failCount, len(n.Recipients))
	}
	return nil
}

// InboxItem is one notification as shown to a reader.
type InboxItem struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Reference string    `json:"reference"`
	Kind      Kind      `json:"kind"`
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the actor's notifications newest first, including broadcasts
// to the roles the actor holds.
func (s *InboxSender) List(ctx context.Context, actor domain.Actor, unreadOnly bool, limit int) ([]InboxItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, reference, kind, recipient, title, message, read, created_at
		FROM notifications
		WHERE tenant_id = $1 AND recipient = ANY($2::text[]) AND (NOT $3 OR NOT read)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, actor.TenantID, Addresses(actor), unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("query inbox: %w", err)
	}
	defer rows.Close()

	var items []InboxItem
	for rows.Next() {
		var (
			item InboxItem
			kind string
		)
		if err := rows.Scan(&item.ID, &item.EventID, &item.Reference, &kind, &item.Recipient,
			&item.Title, &item.Message, &item.Read, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inbox item: %w", err)
		}
		item.Kind = Kind(kind)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inbox: %w", err)
	}
	return items, nil
}

// MarkRead marks one of the actor's notifications as read.
func (s *InboxSender) MarkRead(ctx context.Context, actor domain.Actor, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND tenant_id = $2 AND recipient = ANY($3::text[])`,
		id, actor.TenantID, Addresses(actor))
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark notification %s read: %w", id, ErrNotificationNotFound)
	}
	return nil
}

// DeleteOlderThan removes inbox rows created before cutoff.
func (s *InboxSender) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete notifications before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// Addresses returns every recipient address that reaches actor: the user ID
// and one broadcast address per held role.
func Addresses(actor domain.Actor) []string {
	out := make([]string, 0, len(actor.Roles)+1)
	out = append(out, actor.ID)
	for _, r := range actor.Roles {
		if r.Relationship() {
			continue
		}
		out = append(out, RoleRecipient(r))
	}
	return out
}
