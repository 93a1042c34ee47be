// Package audit builds and reads the event audit trail.
//
// Audit entries are append-only compliance records. They are persisted by
// the event store in the same transaction as the transition they record;
// hard-delete is NOT allowed.
//
// Import Path: safeguard.io/safeguard/internal/governance/audit
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/pkg/logger"
)

// TrailSource reads persisted audit entries.
type TrailSource interface {
	AuditTrail(ctx context.Context, eventID, tenantID string) ([]domain.AuditEntry, error)
}

// Logger reads audit trails from the event store.
type Logger struct {
	source TrailSource
}

// NewLogger creates a new audit Logger.
func NewLogger(source TrailSource) *Logger {
	return &Logger{source: source}
}

// Trail returns the ordered audit trail of an event.
func (l *Logger) Trail(ctx context.Context, eventID, tenantID string) ([]domain.AuditEntry, error) {
	entries, err := l.source.AuditTrail(ctx, eventID, tenantID)
	if err != nil {
		logger.Error("Failed to read audit trail",
			zap.String("event_id", eventID),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("read audit trail: %w", err)
	}
	return entries, nil
}

// NewEntry records action by actor moving an event from before to after.
// before is nil when the event is created.
func NewEntry(before, after *domain.Event, actorID string, action domain.Action, details map[string]string, at time.Time) domain.AuditEntry {
	entry := domain.AuditEntry{
		ID:        generateAuditID(),
		EventID:   after.ID,
		TenantID:  after.TenantID,
		ActorID:   actorID,
		Action:    action,
		NewValue:  after.Snapshot(),
		Timestamp: at.UTC(),
	}
	if before != nil {
		old := before.Snapshot()
		entry.OldValue = &old
	}
	if len(details) > 0 {
		entry.Details = make(map[string]string, len(details))
		for k, v := range details {
			entry.Details[k] = v
		}
	}
	return entry
}

// Filter returns the entries recording one of actions.
func Filter(entries []domain.AuditEntry, actions ...domain.Action) []domain.AuditEntry {
	var out []domain.AuditEntry
	for _, e := range entries {
		for _, a := range actions {
			if e.Action == a {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func generateAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return fmt.Sprintf("audit-%s", id.String())
}
