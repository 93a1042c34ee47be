// Package workflow implements the Transition Authority: the pure state
// machine that decides whether an actor may apply an action to an event and
// computes the resulting event and audit entry.
//
// The authority performs no I/O. Persisting the outcome atomically and
// retrying on conflicts is the caller's job.
package workflow

import (
	"fmt"
	"slices"
	"time"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/audit"
	"safeguard.io/safeguard/internal/governance/permission"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

// Outcome is the result of a successful transition.
type Outcome struct {
	// Event is the patched copy of the input event.
	Event *domain.Event
	// Audit is the entry to append with the patch. Zero when Replay is set.
	Audit  domain.AuditEntry
	From   domain.Status
	To     domain.Status
	Replay bool
}

// Authority validates and computes transitions against a role-permission
// table.
type Authority struct {
	table *permission.Table
}

// NewAuthority validates table against the transition function.
func NewAuthority(table *permission.Table) (*Authority, error) {
	if table == nil {
		return nil, fmt.Errorf("permission table is required")
	}
	if err := table.Validate(DefinedTransitions()); err != nil {
		return nil, fmt.Errorf("validate permission table: %w", err)
	}
	return &Authority{table: table}, nil
}

// Table returns the loaded permission table.
func (a *Authority) Table() *permission.Table {
	return a.table
}

// Transition applies action to e on behalf of actor. e is never modified.
//
// Checks run in order: tenant scope, replay, authorization, required
// payload, domain rules. The first failure is returned as an AppError of the
// matching kind.
func (a *Authority) Transition(e *domain.Event, actor domain.Actor, action domain.Action, payload map[string]string, now time.Time) (*Outcome, error) {
	if e == nil || actor.TenantID != e.TenantID {
		id := ""
		if e != nil {
			id = e.ID
		}
		return nil, apperrors.ErrEventNotFound(id)
	}
	p := Payload(payload)

	key := domain.TransitionKey{Action: action, ActorID: actor.ID, PayloadDigest: p.Digest()}
	if e.LastTransition != nil && *e.LastTransition == key {
		return &Outcome{Event: e.Clone(), From: e.Status, To: e.Status, Replay: true}, nil
	}

	t, ok := transitions[permission.Key{Status: e.Status, Action: action}]
	if !ok || !a.authorized(e, actor, action, p) {
		return nil, apperrors.ErrActionNotPermitted(string(e.Status), string(action))
	}

	if err := p.Require(t.required...); err != nil {
		return nil, err
	}

	next := e.Clone()
	if t.apply != nil {
		if err := t.apply(&change{event: next, actor: actor, payload: p, now: now}); err != nil {
			return nil, err
		}
	}

	from := e.Status
	to := t.target(next)
	next.Status = to
	if to != from {
		next.StatusChangedAt = now
	}
	next.UpdatedAt = now
	next.LastTransition = &key

	if err := checkInvariants(next); err != nil {
		return nil, err
	}

	details := p.Details()
	if to != from {
		details["from"] = string(from)
		details["to"] = string(to)
	}
	return &Outcome{
		Event: next,
		Audit: audit.NewEntry(e, next, actor.ID, action, details, now),
		From:  from,
		To:    to,
	}, nil
}

// authorized reports whether the actor's effective roles intersect the roles
// granted for action in the event's status. The assignee of a corrective
// action may always complete it.
func (a *Authority) authorized(e *domain.Event, actor domain.Actor, action domain.Action, p Payload) bool {
	if a.table.Allows(e.Status, action, actor.EffectiveRoles(e)) {
		return true
	}
	if action == domain.ActionCompleteCorrectiveAction {
		if i := e.FindCorrectiveAction(p.Get(FieldActionID)); i >= 0 {
			return actor.ID != "" && e.CorrectiveActions[i].AssigneeID == actor.ID
		}
	}
	return false
}

// AvailableActions lists the actions the actor may invoke on e in its
// current status. With roleFilter set, held roles are narrowed to it;
// relationship roles always apply. With changingOnly set, status-preserving
// actions are left out.
func (a *Authority) AvailableActions(e *domain.Event, actor domain.Actor, roleFilter domain.Role, changingOnly bool) []domain.Action {
	if e == nil || actor.TenantID != e.TenantID || e.Status.Terminal() {
		return nil
	}
	if roleFilter != "" {
		filtered := actor
		filtered.Roles = nil
		if slices.Contains(actor.Roles, roleFilter) {
			filtered.Roles = []domain.Role{roleFilter}
		}
		actor = filtered
	}
	roles := actor.EffectiveRoles(e)
	if roleFilter != "" && roleFilter.Relationship() {
		roles = slices.DeleteFunc(roles, func(r domain.Role) bool { return r != roleFilter })
	}

	var out []domain.Action
	for _, action := range a.table.Actions(e.Status) {
		if changingOnly && !StatusChanging(e.Status, action) {
			continue
		}
		if a.table.Allows(e.Status, action, roles) {
			out = append(out, action)
		}
	}
	return out
}

func checkInvariants(e *domain.Event) error {
	if err := e.Severity.Check(); err != nil {
		return apperrors.ErrDomainRule(err.Error())
	}
	if err := e.PotentialSeverity.Check(); err != nil {
		return apperrors.ErrDomainRule(err.Error())
	}
	if e.Investigation.Active() && (e.Investigation.InvestigatorID == "" || !e.Approved()) {
		return apperrors.ErrDomainRule("an investigation can only be active on an approved event with an assigned investigator")
	}
	return nil
}
