// Package approval implements the transition gateway: the only write path
// for event state.
//
// The gateway reads the event fresh, asks the workflow authority for the
// outcome, and commits it with a guarded compare-and-update. A conflicting
// concurrent write triggers a bounded retry that re-validates against the
// new state. Post-commit handlers run after the write and never undo it.
//
// Import Path: safeguard.io/safeguard/internal/governance/approval
package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/audit"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
	"safeguard.io/safeguard/internal/pkg/logger"
	"safeguard.io/safeguard/internal/repository"
	"safeguard.io/safeguard/internal/workflow"
)

// Result is the committed (or replayed) outcome of a transition request.
type Result struct {
	Event    *domain.Event
	Audit    *domain.AuditEntry
	From     domain.Status
	To       domain.Status
	Replay   bool
	Attempts int
}

// Gateway orchestrates transition requests against the event store.
type Gateway struct {
	store      repository.EventStore
	authority  *workflow.Authority
	dispatcher *domain.TransitionDispatcher // Optional: nil skips post-commit handlers
	maxRetries int
	now        func() time.Time
}

// NewGateway creates a Gateway. maxRetries bounds the re-reads after a
// conflict; zero disables retrying.
func NewGateway(store repository.EventStore, authority *workflow.Authority, maxRetries int) *Gateway {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Gateway{
		store:      store,
		authority:  authority,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// SetDispatcher configures the post-commit handlers.
func (g *Gateway) SetDispatcher(d *domain.TransitionDispatcher) {
	g.dispatcher = d
}

// SetClock overrides the time source. Used by tests and the seed tool.
func (g *Gateway) SetClock(now func() time.Time) {
	g.now = now
}

// Authority returns the transition authority the gateway validates with.
func (g *Gateway) Authority() *workflow.Authority {
	return g.authority
}

// Apply validates action against the current event and commits the result.
//
// Validation failures are returned unchanged as AppErrors. A conflict that
// survives maxRetries re-reads is returned as a STATE_CONFLICT AppError.
func (g *Gateway) Apply(ctx context.Context, actor domain.Actor, eventID string, action domain.Action, payload map[string]string) (*Result, error) {
	start := time.Now()
	res, err := g.apply(ctx, actor, eventID, action, payload)

	outcome := "committed"
	switch {
	case err != nil:
		outcome = string(apperrors.KindOf(err))
	case res.Replay:
		outcome = "replay"
	}
	RecordTransition(ctx, string(action), outcome, time.Since(start))
	return res, err
}

func (g *Gateway) apply(ctx context.Context, actor domain.Actor, eventID string, action domain.Action, payload map[string]string) (*Result, error) {
	for attempt := 1; ; attempt++ {
		current, err := g.store.Get(ctx, eventID, actor.TenantID)
		if err != nil {
			return nil, storeError(eventID, err)
		}

		log := logger.Transition(eventID, string(action), actor.ID)
		outcome, err := g.authority.Transition(current, actor, action, payload, g.now().UTC())
		if err != nil {
			log.Debug("Transition refused",
				zap.String("status", string(current.Status)),
				zap.Error(err),
			)
			return nil, err
		}
		if outcome.Replay {
			log.Info("Transition replay ignored")
			return &Result{Event: outcome.Event, From: outcome.From, To: outcome.To, Replay: true, Attempts: attempt}, nil
		}

		stored, err := g.store.CompareAndUpdate(ctx, repository.Commit{
			Event:           outcome.Event,
			ExpectedStatus:  current.Status,
			ExpectedVersion: current.Version,
			Audit:           outcome.Audit,
		})
		if errors.Is(err, repository.ErrConflict) {
			if attempt > g.maxRetries {
				RecordConflict(ctx, string(action), "exhausted")
				log.Warn("Transition conflict retries exhausted", zap.Int("attempts", attempt))
				return nil, apperrors.ErrStateConflict(err)
			}
			RecordConflict(ctx, string(action), "retry")
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("retry transition %s on event %s: %w", action, eventID, ctxErr)
			}
			continue
		}
		if err != nil {
			return nil, storeError(eventID, err)
		}

		entry := outcome.Audit
		log.Info("Transition committed",
			zap.String("from", string(outcome.From)),
			zap.String("to", string(outcome.To)),
			zap.Int64("version", stored.Version),
		)

		g.dispatch(ctx, &domain.CommittedTransition{
			Event:   stored.Clone(),
			Actor:   actor,
			Action:  action,
			From:    outcome.From,
			To:      outcome.To,
			Payload: workflow.Payload(payload).Details(),
			Audit:   entry,
		})

		return &Result{
			Event:    stored,
			Audit:    &entry,
			From:     outcome.From,
			To:       outcome.To,
			Attempts: attempt,
		}, nil
	}
}

// Create stores a new event with its creation audit entry and runs the
// post-commit handlers for the create action.
func (g *Gateway) Create(ctx context.Context, actor domain.Actor, e *domain.Event) (*domain.Event, error) {
	entry := audit.NewEntry(nil, e, actor.ID, domain.ActionCreate, map[string]string{
		"reference": e.Reference,
		"to":        string(e.Status),
	}, e.CreatedAt)

	if err := g.store.Create(ctx, e, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ErrStateConflict(err)
		}
		return nil, fmt.Errorf("create event %s: %w", e.ID, err)
	}

	logger.Info("Event created",
		zap.String("event_id", e.ID),
		zap.String("reference", e.Reference),
		zap.String("event_type", string(e.Type)),
		zap.String("actor", actor.ID),
	)

	g.dispatch(ctx, &domain.CommittedTransition{
		Event:  e.Clone(),
		Actor:  actor,
		Action: domain.ActionCreate,
		To:     e.Status,
		Audit:  entry,
	})
	return e.Clone(), nil
}

func (g *Gateway) dispatch(ctx context.Context, t *domain.CommittedTransition) {
	if g.dispatcher == nil {
		return
	}
	// Handler failures are logged by the dispatcher; the commit stands.
	_ = g.dispatcher.Dispatch(ctx, t)
}

func storeError(eventID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrEventNotFound(eventID)
	}
	return fmt.Errorf("event store: %w", err)
}

// Priority tiers for pending work.
const (
	TierNormal  = "normal"
	TierWarning = "warning"
	TierOverdue = "overdue"
)

// PriorityTier calculates the urgency tier of work that entered its status
// at changedAt and is expected within sla. Less than a quarter of the
// window left is a warning. A non-positive sla has no due date.
func PriorityTier(changedAt time.Time, sla time.Duration, now time.Time) (string, *time.Time) {
	if sla <= 0 {
		return TierNormal, nil
	}
	due := changedAt.Add(sla)
	left := due.Sub(now)
	switch {
	case left <= 0:
		return TierOverdue, &due
	case left < sla/4:
		return TierWarning, &due
	default:
		return TierNormal, &due
	}
}
