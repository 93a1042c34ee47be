// Package repository defines the Event Record Store port.
//
// The store is the only writer of event state. Every update is a
// compare-and-update guarded by the status and version the caller read, and
// the audit entry describing the update is appended in the same transaction.
package repository

import (
	"context"
	"errors"

	"safeguard.io/safeguard/internal/domain"
)

// Sentinel errors. Adapters wrap them with fmt.Errorf("...: %w").
var (
	ErrNotFound  = errors.New("event not found")
	ErrConflict  = errors.New("event state changed concurrently")
	ErrDuplicate = errors.New("event already exists")
)

// Commit is one guarded update: the patched event plus its audit entry.
type Commit struct {
	Event           *domain.Event
	ExpectedStatus  domain.Status
	ExpectedVersion int64
	Audit           domain.AuditEntry
}

// EventStore is tenant-scoped durable storage for events and their audit
// trail.
type EventStore interface {
	// Create stores a new event with its creation audit entry atomically.
	Create(ctx context.Context, e *domain.Event, entry domain.AuditEntry) error

	// Get returns the event, or ErrNotFound when it does not exist in tenant.
	Get(ctx context.Context, eventID, tenantID string) (*domain.Event, error)

	// CompareAndUpdate replaces the event when it is still in
	// ExpectedStatus at ExpectedVersion, appends the audit entry, and
	// returns the stored event with its new version. It fails with
	// ErrConflict when the event moved and ErrNotFound when it is absent.
	CompareAndUpdate(ctx context.Context, c Commit) (*domain.Event, error)

	// AuditTrail returns the event's audit entries in append order.
	AuditTrail(ctx context.Context, eventID, tenantID string) ([]domain.AuditEntry, error)

	// ListByStatus returns the tenant's events in any of statuses, oldest
	// status change first. An empty statuses slice matches every event.
	ListByStatus(ctx context.Context, tenantID string, statuses []domain.Status) ([]*domain.Event, error)
}
