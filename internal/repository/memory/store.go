// Package memory is an in-process EventStore used by tests and by the
// memory storage driver.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/repository"
)

// Store keeps events and audit entries in mutex-guarded maps. Values are
// deep-copied on the way in and out.
type Store struct {
	mu     sync.RWMutex
	events map[string]*domain.Event
	audit  map[string][]domain.AuditEntry
}

var _ repository.EventStore = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		events: make(map[string]*domain.Event),
		audit:  make(map[string][]domain.AuditEntry),
	}
}

// Create implements repository.EventStore.
func (s *Store) Create(_ context.Context, e *domain.Event, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("create event %s: %w", e.ID, repository.ErrDuplicate)
	}
	for _, existing := range s.events {
		if existing.TenantID == e.TenantID && existing.Reference == e.Reference {
			return fmt.Errorf("create event reference %s: %w", e.Reference, repository.ErrDuplicate)
		}
	}
	stored := e.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	s.events[e.ID] = stored
	s.audit[e.ID] = []domain.AuditEntry{cloneEntry(entry)}
	e.Version = stored.Version
	return nil
}

// Get implements repository.EventStore.
func (s *Store) Get(_ context.Context, eventID, tenantID string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok || e.TenantID != tenantID {
		return nil, fmt.Errorf("get event %s: %w", eventID, repository.ErrNotFound)
	}
	return e.Clone(), nil
}

// CompareAndUpdate implements repository.EventStore.
func (s *Store) CompareAndUpdate(_ context.Context, c repository.Commit) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.events[c.Event.ID]
	if !ok || current.TenantID != c.Event.TenantID {
		return nil, fmt.Errorf("update event %s: %w", c.Event.ID, repository.ErrNotFound)
	}
	if current.Status != c.ExpectedStatus || current.Version != c.ExpectedVersion {
		return nil, fmt.Errorf("update event %s (expected %s@%d, found %s@%d): %w",
			c.Event.ID, c.ExpectedStatus, c.ExpectedVersion, current.Status, current.Version, repository.ErrConflict)
	}

	stored := c.Event.Clone()
	stored.Version = c.ExpectedVersion + 1
	s.events[stored.ID] = stored
	s.audit[stored.ID] = append(s.audit[stored.ID], cloneEntry(c.Audit))
	return stored.Clone(), nil
}

// AuditTrail implements repository.EventStore.
func (s *Store) AuditTrail(_ context.Context, eventID, tenantID string) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok || e.TenantID != tenantID {
		return nil, fmt.Errorf("audit trail %s: %w", eventID, repository.ErrNotFound)
	}
	entries := s.audit[eventID]
	out := make([]domain.AuditEntry, len(entries))
	for i, entry := range entries {
		out[i] = cloneEntry(entry)
	}
	return out, nil
}

// ListByStatus implements repository.EventStore.
func (s *Store) ListByStatus(_ context.Context, tenantID string, statuses []domain.Status) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Event
	for _, e := range s.events {
		if e.TenantID != tenantID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, e.Status) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StatusChangedAt.Equal(out[j].StatusChangedAt) {
			return out[i].StatusChangedAt.Before(out[j].StatusChangedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func cloneEntry(e domain.AuditEntry) domain.AuditEntry {
	if e.OldValue != nil {
		old := *e.OldValue
		e.OldValue = &old
	}
	if e.Details != nil {
		details := make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		e.Details = details
	}
	return e
}
