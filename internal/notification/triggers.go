package notification

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/pkg/logger"
)

// Triggers turns committed transitions into notices and hands them to a
// Dispatcher. Register Handle on the transition dispatcher.
type Triggers struct {
	dispatcher Dispatcher
}

// NewTriggers creates a new notification trigger service.
func NewTriggers(dispatcher Dispatcher) *Triggers {
	return &Triggers{dispatcher: dispatcher}
}

// Handle is a domain.TransitionHandler. Dispatch failures are returned for
// logging only.
func (t *Triggers) Handle(ctx context.Context, ct *domain.CommittedTransition) error {
	notices := Plan(ct)
	if len(notices) == 0 {
		return nil
	}
	if err := t.dispatcher.Dispatch(ctx, notices); err != nil {
		for _, n := range notices {
			RecordDelivery(ctx, "dispatch", n.Kind, "dropped")
		}
		return fmt.Errorf("dispatch %d notices for event %s: %w", len(notices), ct.Event.ID, err)
	}
	logger.Debug("Notices dispatched",
		zap.String("event_id", ct.Event.ID),
		zap.String("action", string(ct.Action)),
		zap.Int("count", len(notices)),
	)
	return nil
}

// PlanFromAudit rebuilds the committed transition described by entry and
// plans its notices. Used where only the stored event and its audit entry
// are at hand, such as inside the write transaction.
func PlanFromAudit(e *domain.Event, entry domain.AuditEntry) []Notice {
	ct := &domain.CommittedTransition{
		Event:   e,
		Actor:   domain.Actor{ID: entry.ActorID, TenantID: entry.TenantID},
		Action:  entry.Action,
		To:      entry.NewValue.Status,
		Payload: entry.Details,
		Audit:   entry,
	}
	if entry.OldValue != nil {
		ct.From = entry.OldValue.Status
	}
	return Plan(ct)
}

// Plan computes the notices for a committed transition. The acting user is
// never notified directly.
func Plan(ct *domain.CommittedTransition) []Notice {
	if ct == nil || ct.Event == nil {
		return nil
	}
	e := ct.Event
	var out []Notice
	add := func(kind Kind, recipients ...string) {
		rs := recipientsExcluding(ct.Actor.ID, recipients)
		if len(rs) == 0 {
			return
		}
		out = append(out, Notice{
			EventID:    e.ID,
			TenantID:   e.TenantID,
			Reference:  e.Reference,
			Kind:       kind,
			Recipients: rs,
			Title:      fmt.Sprintf(titles[kind], e.Reference),
			Message:    message(ct),
			CreatedAt:  ct.Audit.Timestamp,
		})
	}

	switch ct.Action {
	case domain.ActionProposeSeverity:
		add(KindSeverityChangePending, RoleRecipient(domain.RoleHSSEManager))
	case domain.ActionApproveSeverityChange, domain.ActionRejectSeverityChange:
		add(KindSeverityChangeDecided, e.InvestigatorID(), RoleRecipient(domain.RoleHSSEExpert))
	case domain.ActionAssignInvestigator, domain.ActionReassignInvestigator:
		add(KindInvestigatorAssigned, e.InvestigatorID())
	case domain.ActionAddCorrectiveAction, domain.ActionApproveWithAction:
		if n := len(e.CorrectiveActions); n > 0 {
			add(KindActionAssigned, e.CorrectiveActions[n-1].AssigneeID)
		}
	}
	if ct.From == ct.To {
		return out
	}

	switch ct.To {
	case domain.StatusPendingDeptRepReview, domain.StatusPendingDeptRepApproval:
		add(KindEventSubmitted, RoleRecipient(domain.RoleDepartmentRepresentative))
	case domain.StatusReturnedToReporter:
		add(KindReturned, e.ReporterID)
	case domain.StatusReturnedToDeptRep, domain.StatusAcceptedAsObservation, domain.StatusPendingDeptRepMandatoryAction:
		add(KindReviewRequired, RoleRecipient(domain.RoleDepartmentRepresentative))
	case domain.StatusPendingReview, domain.StatusPendingHSSEEscalationReview, domain.StatusPendingHSSERejectionReview,
		domain.StatusUpgradedToIncident, domain.StatusPendingHSSEValidation:
		add(KindReviewRequired, RoleRecipient(domain.RoleHSSEExpert))
	case domain.StatusReporterDispute:
		add(KindDisputeRaised, RoleRecipient(domain.RoleHSSEExpert))
	case domain.StatusRejected:
		add(KindRejected, e.ReporterID)
	case domain.StatusPendingManagerApproval:
		add(KindApprovalRequired, RoleRecipient(domain.RoleManager))
	case domain.StatusHSSEManagerEscalation:
		add(KindApprovalRequired, RoleRecipient(domain.RoleHSSEManager))
	case domain.StatusInvestigationPending:
		if ct.Action != domain.ActionReassignInvestigator {
			add(KindReviewRequired, RoleRecipient(domain.RoleHSSEManager))
		}
	case domain.StatusObservationActionsPending:
		if ct.Action == domain.ActionRejectValidation {
			add(KindReturned, RoleRecipient(domain.RoleDepartmentRepresentative))
		}
	case domain.StatusPendingClosure, domain.StatusPendingFinalClosure:
		add(KindClosureRequired, RoleRecipient(domain.RoleHSSEManager))
	case domain.StatusClosed, domain.StatusInvestigationClosed:
		add(KindEventClosed, e.ReporterID, e.InvestigatorID())
	}
	return out
}

var titles = map[Kind]string{
	KindEventSubmitted:        "%s submitted for department review",
	KindReviewRequired:        "%s requires your review",
	KindReturned:              "%s was returned for changes",
	KindRejected:              "%s was rejected",
	KindDisputeRaised:         "%s rejection disputed by the reporter",
	KindApprovalRequired:      "%s requires approval",
	KindInvestigatorAssigned:  "You are the investigator for %s",
	KindActionAssigned:        "Corrective action assigned on %s",
	KindClosureRequired:       "%s is ready for closure",
	KindSeverityChangePending: "Severity change proposed on %s",
	KindSeverityChangeDecided: "Severity change decided on %s",
	KindEventClosed:           "%s was closed",
}

func message(ct *domain.CommittedTransition) string {
	e := ct.Event
	msg := fmt.Sprintf("%s %q is now %s after %s by %s.", e.Type, e.Title, ct.To, ct.Action, ct.Actor.ID)
	if reason := ct.Payload["reason"]; reason != "" {
		msg += " Reason: " + reason
	}
	return msg
}

func recipientsExcluding(actorID string, recipients []string) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r == "" || r == actorID || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}
