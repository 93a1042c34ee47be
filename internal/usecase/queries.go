package usecase

import (
	"context"
	"errors"
	"time"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/approval"
	"safeguard.io/safeguard/internal/governance/audit"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
	"safeguard.io/safeguard/internal/repository"
	"safeguard.io/safeguard/internal/workflow"
)

// EventView is an event plus the actions the reader may invoke on it.
type EventView struct {
	Event            *domain.Event   `json:"event"`
	AvailableActions []domain.Action `json:"available_actions"`
}

// EventSummary is one row of an actor's pending work list.
type EventSummary struct {
	ID               string           `json:"id"`
	Reference        string           `json:"reference"`
	Type             domain.EventType `json:"event_type"`
	Title            string           `json:"title"`
	Status           domain.Status    `json:"status"`
	Severity         domain.Severity  `json:"severity"`
	StatusChangedAt  time.Time        `json:"status_changed_at"`
	DueAt            *time.Time       `json:"due_at,omitempty"`
	PriorityTier     string           `json:"priority_tier"`
	AvailableActions []domain.Action  `json:"available_actions"`
}

// EventQueries serves the read side: event detail, audit trail and
// pending work lists.
type EventQueries struct {
	store     repository.EventStore
	authority *workflow.Authority
	trail     *audit.Logger
	sla       map[domain.Status]time.Duration
	now       func() time.Time
}

// NewEventQueries creates the read-side use cases. sla maps a status to the
// expected time to act; statuses without an entry have no due date.
func NewEventQueries(store repository.EventStore, authority *workflow.Authority, sla map[domain.Status]time.Duration) *EventQueries {
	return &EventQueries{
		store:     store,
		authority: authority,
		trail:     audit.NewLogger(store),
		sla:       sla,
		now:       time.Now,
	}
}

// GetEvent returns the event if it exists in the actor's tenant.
func (q *EventQueries) GetEvent(ctx context.Context, actor domain.Actor, eventID string) (*EventView, error) {
	e, err := q.store.Get(ctx, eventID, actor.TenantID)
	if err != nil {
		return nil, mapStoreError(eventID, err)
	}
	return &EventView{
		Event:            e,
		AvailableActions: orEmpty(q.authority.AvailableActions(e, actor, "", false)),
	}, nil
}

// GetAuditTrail returns the ordered audit entries of an event in the actor's
// tenant.
func (q *EventQueries) GetAuditTrail(ctx context.Context, actor domain.Actor, eventID string) ([]domain.AuditEntry, error) {
	entries, err := q.trail.Trail(ctx, eventID, actor.TenantID)
	if err != nil {
		return nil, mapStoreError(eventID, err)
	}
	return entries, nil
}

// ListEvents returns the tenant's events in the given statuses, oldest status
// change first. No statuses means every status.
func (q *EventQueries) ListEvents(ctx context.Context, actor domain.Actor, statuses []domain.Status) ([]EventSummary, error) {
	for _, s := range statuses {
		if !s.Valid() {
			return nil, apperrors.ErrInvalidPayloadf("status", "unknown status "+string(s))
		}
	}
	events, err := q.store.ListByStatus(ctx, actor.TenantID, statuses)
	if err != nil {
		return nil, mapStoreError("", err)
	}
	now := q.now()
	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		out = append(out, q.summarize(e, q.authority.AvailableActions(e, actor, "", false), now))
	}
	return out, nil
}

// GetPendingFor lists events on which the actor can invoke at least one
// status-changing action. roleFilter narrows the held roles considered;
// relationship roles always apply.
func (q *EventQueries) GetPendingFor(ctx context.Context, actor domain.Actor, roleFilter domain.Role) ([]EventSummary, error) {
	if roleFilter != "" && !roleFilter.Valid() {
		return nil, apperrors.ErrInvalidPayloadf("role", "unknown role "+string(roleFilter))
	}

	open := make([]domain.Status, 0, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		if !s.Terminal() {
			open = append(open, s)
		}
	}
	events, err := q.store.ListByStatus(ctx, actor.TenantID, open)
	if err != nil {
		return nil, mapStoreError("", err)
	}

	now := q.now()
	out := make([]EventSummary, 0)
	for _, e := range events {
		actions := q.authority.AvailableActions(e, actor, roleFilter, true)
		if len(actions) == 0 {
			continue
		}
		out = append(out, q.summarize(e, actions, now))
	}
	return out, nil
}

func (q *EventQueries) summarize(e *domain.Event, actions []domain.Action, now time.Time) EventSummary {
	s := EventSummary{
		ID:               e.ID,
		Reference:        e.Reference,
		Type:             e.Type,
		Title:            e.Title,
		Status:           e.Status,
		Severity:         e.Severity.Current,
		StatusChangedAt:  e.StatusChangedAt,
		PriorityTier:     approval.TierNormal,
		AvailableActions: orEmpty(actions),
	}
	if !e.Status.Terminal() {
		s.PriorityTier, s.DueAt = approval.PriorityTier(e.StatusChangedAt, q.sla[e.Status], now)
	}
	return s
}

func orEmpty(actions []domain.Action) []domain.Action {
	if actions == nil {
		return []domain.Action{}
	}
	return actions
}

func mapStoreError(eventID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrEventNotFound(eventID)
	}
	return err
}
