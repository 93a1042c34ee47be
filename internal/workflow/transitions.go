package workflow

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/permission"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

// transition is one defined (status, action) edge.
type transition struct {
	// to is the target status. Empty means the status is preserved.
	to domain.Status
	// branch picks the target at run time; it overrides to.
	branch   func(e *domain.Event) domain.Status
	required []string
	apply    func(c *change) error
}

func (t transition) target(e *domain.Event) domain.Status {
	if t.branch != nil {
		return t.branch(e)
	}
	if t.to == "" {
		return e.Status
	}
	return t.to
}

// change is the working state of one transition. event is a private copy.
type change struct {
	event   *domain.Event
	actor   domain.Actor
	payload Payload
	now     time.Time
}

var (
	severityReviewStatuses = []domain.Status{
		domain.StatusPendingReview,
		domain.StatusPendingManagerApproval,
		domain.StatusHSSEManagerEscalation,
		domain.StatusInvestigationPending,
		domain.StatusInvestigationInProgress,
		domain.StatusPendingClosure,
		domain.StatusPendingDeptRepApproval,
		domain.StatusPendingHSSEEscalationReview,
		domain.StatusObservationActionsPending,
		domain.StatusPendingHSSEValidation,
	}
	correctiveActionStatuses = []domain.Status{
		domain.StatusInvestigationInProgress,
		domain.StatusObservationActionsPending,
	}
	deptRepDecisionStatuses = []domain.Status{
		domain.StatusPendingDeptRepApproval,
		domain.StatusReturnedToDeptRep,
		domain.StatusPendingDeptRepMandatoryAction,
	}
)

// transitions is the complete transition function. A (status, action) pair
// absent from it is undefined.
var transitions = buildTransitions()

func buildTransitions() map[permission.Key]transition {
	table := make(map[permission.Key]transition)
	add := func(action domain.Action, t transition, from ...domain.Status) {
		for _, s := range from {
			k := permission.Key{Status: s, Action: action}
			if _, dup := table[k]; dup {
				panic("duplicate transition " + k.String())
			}
			table[k] = t
		}
	}

	// Incident lifecycle.
	add(domain.ActionSubmit, transition{to: domain.StatusPendingDeptRepReview}, domain.StatusNew)
	add(domain.ActionApprove, transition{to: domain.StatusPendingReview}, domain.StatusPendingDeptRepReview)
	add(domain.ActionReturnToReporter, transition{
		to:       domain.StatusReturnedToReporter,
		required: []string{FieldReason},
		apply:    setReturnReason,
	}, domain.StatusPendingDeptRepReview, domain.StatusPendingReview)
	add(domain.ActionResubmit, transition{
		to:    domain.StatusPendingDeptRepReview,
		apply: clearReturnReason,
	}, domain.StatusReturnedToReporter)
	add(domain.ActionApprove, transition{
		to:       domain.StatusPendingManagerApproval,
		required: []string{FieldSeverity},
		apply:    assignSeverity,
	}, domain.StatusPendingReview, domain.StatusUpgradedToIncident)
	add(domain.ActionReject, transition{
		to:       domain.StatusRejected,
		required: []string{FieldReason},
		apply:    setRejectionReason,
	}, domain.StatusPendingReview)
	add(domain.ActionDispute, transition{
		to:       domain.StatusReporterDispute,
		required: []string{FieldReason},
		apply:    setDisputeReason,
	}, domain.StatusRejected)
	add(domain.ActionUpholdRejection, transition{to: domain.StatusRejected}, domain.StatusReporterDispute)
	add(domain.ActionAcceptDispute, transition{
		branch: disputeTarget,
		apply:  clearRejection,
	}, domain.StatusReporterDispute)
	add(domain.ActionApprove, transition{
		to:    domain.StatusInvestigationPending,
		apply: recordApproval,
	}, domain.StatusPendingManagerApproval)
	add(domain.ActionReject, transition{
		to:       domain.StatusHSSEManagerEscalation,
		required: []string{FieldReason},
		apply:    setRejectionReason,
	}, domain.StatusPendingManagerApproval)
	add(domain.ActionOverride, transition{
		to:       domain.StatusInvestigationPending,
		required: []string{FieldReason},
		apply:    recordApproval,
	}, domain.StatusHSSEManagerEscalation)
	add(domain.ActionConfirmRejection, transition{
		to:       domain.StatusRejected,
		required: []string{FieldReason},
		apply:    setRejectionReason,
	}, domain.StatusHSSEManagerEscalation)
	add(domain.ActionAssignInvestigator, transition{
		required: []string{FieldInvestigatorID},
		apply:    assignInvestigator,
	}, domain.StatusInvestigationPending)
	add(domain.ActionStartInvestigation, transition{
		to:    domain.StatusInvestigationInProgress,
		apply: startInvestigation,
	}, domain.StatusInvestigationPending)
	add(domain.ActionCloseWithoutInvestigation, transition{
		to:       domain.StatusInvestigationClosed,
		required: []string{FieldReason},
	}, domain.StatusInvestigationPending)
	add(domain.ActionReassignInvestigator, transition{
		to:       domain.StatusInvestigationPending,
		required: []string{FieldInvestigatorID, FieldReason},
		apply:    assignInvestigator,
	}, domain.StatusInvestigationInProgress)
	add(domain.ActionSubmitForClosure, transition{
		to:    domain.StatusPendingClosure,
		apply: submitForClosure,
	}, domain.StatusInvestigationInProgress)
	add(domain.ActionApproveClosure, transition{branch: closureTarget}, domain.StatusPendingClosure)
	add(domain.ActionReturnToInvestigation, transition{
		to:       domain.StatusInvestigationInProgress,
		required: []string{FieldReason},
		apply:    unlockInvestigation,
	}, domain.StatusPendingClosure)
	add(domain.ActionFinalClose, transition{to: domain.StatusClosed}, domain.StatusPendingFinalClosure)

	// Observation lifecycle.
	add(domain.ActionCloseOnSpot, transition{
		to:       domain.StatusClosed,
		required: []string{FieldEvidenceRef},
		apply:    closeOnSpot,
	}, domain.StatusSubmitted)
	add(domain.ActionSubmit, transition{to: domain.StatusPendingDeptRepApproval}, domain.StatusSubmitted)
	add(domain.ActionApproveWithAction, transition{
		to:       domain.StatusObservationActionsPending,
		required: []string{FieldActionDescription, FieldActionAssignee},
		apply:    approveWithAction,
	}, slices.Concat(deptRepDecisionStatuses, []domain.Status{domain.StatusAcceptedAsObservation})...)
	add(domain.ActionEscalate, transition{
		to:       domain.StatusPendingHSSEEscalationReview,
		required: []string{FieldReason},
	}, deptRepDecisionStatuses...)
	// pending_dept_rep_mandatory_action deliberately has no reject edge.
	add(domain.ActionReject, transition{
		to:       domain.StatusPendingHSSERejectionReview,
		required: []string{FieldReason},
		apply:    setRejectionReason,
	}, domain.StatusPendingDeptRepApproval, domain.StatusReturnedToDeptRep)
	add(domain.ActionAcceptAsObservation, transition{to: domain.StatusAcceptedAsObservation}, domain.StatusPendingHSSEEscalationReview)
	add(domain.ActionUpgradeToIncident, transition{
		to:       domain.StatusUpgradedToIncident,
		required: []string{FieldReason},
		apply:    upgradeToIncident,
	}, domain.StatusPendingHSSEEscalationReview)
	add(domain.ActionReturnToDeptRep, transition{
		to:       domain.StatusReturnedToDeptRep,
		required: []string{FieldReason},
		apply:    setReturnReason,
	}, domain.StatusPendingHSSEEscalationReview)
	add(domain.ActionConfirmRejection, transition{to: domain.StatusRejected}, domain.StatusPendingHSSERejectionReview)
	add(domain.ActionOverrideRejection, transition{
		to:       domain.StatusPendingDeptRepMandatoryAction,
		required: []string{FieldReason},
		apply:    clearRejection,
	}, domain.StatusPendingHSSERejectionReview)
	add(domain.ActionCompleteActions, transition{
		to:    domain.StatusPendingHSSEValidation,
		apply: completeActions,
	}, domain.StatusObservationActionsPending)
	add(domain.ActionValidate, transition{
		branch: closureTarget,
		apply:  verifyCompletedActions,
	}, domain.StatusPendingHSSEValidation)
	// A failed validation goes straight back to the action owners.
	// Rejection review only follows a dept rep reject.
	add(domain.ActionRejectValidation, transition{
		to:       domain.StatusObservationActionsPending,
		required: []string{FieldReason},
		apply:    setReturnReason,
	}, domain.StatusPendingHSSEValidation)
	// final_close from pending_final_closure is shared with incidents.

	// Status-preserving actions.
	add(domain.ActionProposeSeverity, transition{
		required: []string{FieldField, FieldValue, FieldJustification},
		apply:    proposeSeverity,
	}, severityReviewStatuses...)
	add(domain.ActionApproveSeverityChange, transition{
		required: []string{FieldField},
		apply:    approveSeverityChange,
	}, severityReviewStatuses...)
	add(domain.ActionRejectSeverityChange, transition{
		required: []string{FieldField},
		apply:    rejectSeverityChange,
	}, severityReviewStatuses...)
	add(domain.ActionAddCorrectiveAction, transition{
		required: []string{FieldDescription, FieldAssigneeID},
		apply:    addCorrectiveAction,
	}, correctiveActionStatuses...)
	add(domain.ActionCompleteCorrectiveAction, transition{
		required: []string{FieldActionID},
		apply:    completeCorrectiveAction,
	}, correctiveActionStatuses...)
	add(domain.ActionVerifyCorrectiveAction, transition{
		required: []string{FieldActionID},
		apply:    verifyCorrectiveAction,
	}, domain.StatusInvestigationInProgress)

	return table
}

// DefinedTransitions lists every defined (status, action) pair.
func DefinedTransitions() []permission.Key {
	keys := make([]permission.Key, 0, len(transitions))
	for k := range transitions {
		keys = append(keys, k)
	}
	return keys
}

// StatusChanging reports whether action moves an event out of status.
func StatusChanging(status domain.Status, action domain.Action) bool {
	t, ok := transitions[permission.Key{Status: status, Action: action}]
	return ok && (t.to != "" || t.branch != nil)
}

// closureTarget routes severity 5 events through HSSE Manager final closure.
// disputeTarget reopens an accepted dispute on the event's own track.
// Observations never enter incident review.
func disputeTarget(e *domain.Event) domain.Status {
	if e.Type == domain.EventTypeObservation {
		return domain.StatusPendingDeptRepMandatoryAction
	}
	return domain.StatusPendingReview
}

func closureTarget(e *domain.Event) domain.Status {
	if e.Severity.Current >= domain.SeverityMax {
		return domain.StatusPendingFinalClosure
	}
	return domain.StatusClosed
}

func setReturnReason(c *change) error {
	c.event.ReturnReason = c.payload.Get(FieldReason)
	return nil
}

func clearReturnReason(c *change) error {
	c.event.ReturnReason = ""
	return nil
}

func setRejectionReason(c *change) error {
	if r := c.payload.Get(FieldReason); r != "" {
		c.event.RejectionReason = r
	}
	return nil
}

func setDisputeReason(c *change) error {
	c.event.DisputeReason = c.payload.Get(FieldReason)
	return nil
}

func clearRejection(c *change) error {
	c.event.RejectionReason = ""
	c.event.DisputeReason = ""
	return nil
}

// assignSeverity commits the actual severity chosen at HSSE screening.
func assignSeverity(c *change) error {
	e := c.event
	value, err := parseSeverityField(c.payload, FieldSeverity)
	if err != nil {
		return err
	}
	if err := CheckActualSeverity(e, value, c.payload.Get(FieldOverrideReason)); err != nil {
		return err
	}
	if e.Severity.PendingApproval() {
		return apperrors.ErrDomainRule("a severity change is pending approval; decide it before assigning severity")
	}
	if err := checkPotentialAgainstActual(value, e.PotentialSeverity.Current); err != nil {
		return err
	}
	e.Severity.Current = value
	e.Severity.LastApprovedBy = c.actor.ID
	at := c.now
	e.Severity.LastApprovedAt = &at
	return nil
}

func recordApproval(c *change) error {
	at := c.now
	c.event.ApprovedBy = c.actor.ID
	c.event.ApprovedAt = &at
	c.event.ApproverID = c.actor.ID
	return nil
}

func assignInvestigator(c *change) error {
	e := c.event
	id := c.payload.Get(FieldInvestigatorID)
	if id == e.ReporterID {
		return apperrors.ErrDomainRule("the reporter cannot investigate their own event")
	}
	if e.Status == domain.StatusInvestigationInProgress && id == e.InvestigatorID() {
		return apperrors.ErrDomainRule("the investigator is already assigned to this event")
	}
	if !e.Approved() {
		return apperrors.ErrDomainRule("an investigator can only be assigned to an approved event")
	}
	e.Investigation = &domain.Investigation{
		InvestigatorID: id,
		AssignedBy:     c.actor.ID,
		AssignedAt:     c.now,
		Notes:          c.payload.Get(FieldNotes),
	}
	return nil
}

func startInvestigation(c *change) error {
	e := c.event
	if !e.Approved() {
		return apperrors.ErrDomainRule("the event must be approved before the investigation starts")
	}
	if e.InvestigatorID() == "" {
		return apperrors.ErrDomainRule("an investigator must be assigned before the investigation starts")
	}
	at := c.now
	e.Investigation.StartedAt = &at
	return nil
}

func submitForClosure(c *change) error {
	for _, a := range c.event.CorrectiveActions {
		if a.Status != domain.CorrectiveActionVerified {
			return apperrors.ErrDomainRule(fmt.Sprintf(
				"corrective action %s must be verified before closure", a.ID))
		}
	}
	c.event.InvestigationLocked = true
	return nil
}

func unlockInvestigation(c *change) error {
	c.event.InvestigationLocked = false
	return nil
}

func closeOnSpot(c *change) error {
	e := c.event
	if e.Severity.Current > 2 {
		return apperrors.ErrDomainRule(fmt.Sprintf(
			"only severity L1-L2 observations may be closed on the spot; this one is %s", e.Severity.Current))
	}
	e.EvidenceRef = c.payload.Get(FieldEvidenceRef)
	return nil
}

func approveWithAction(c *change) error {
	c.event.CorrectiveActions = append(c.event.CorrectiveActions, newCorrectiveAction(
		c.payload.Get(FieldActionDescription), c.payload.Get(FieldActionAssignee), c.actor.ID, c.now))
	c.event.ReturnReason = ""
	return nil
}

func upgradeToIncident(c *change) error {
	c.event.Type = domain.EventTypeIncident
	return nil
}

func completeActions(c *change) error {
	e := c.event
	if len(e.CorrectiveActions) == 0 {
		return apperrors.ErrDomainRule("at least one corrective action is required")
	}
	for _, a := range e.CorrectiveActions {
		if a.Status == domain.CorrectiveActionOpen {
			return apperrors.ErrDomainRule(fmt.Sprintf("corrective action %s is not completed", a.ID))
		}
	}
	e.ReturnReason = ""
	return nil
}

func verifyCompletedActions(c *change) error {
	for i := range c.event.CorrectiveActions {
		a := &c.event.CorrectiveActions[i]
		if a.Status == domain.CorrectiveActionCompleted {
			at := c.now
			a.Status = domain.CorrectiveActionVerified
			a.VerifiedBy = c.actor.ID
			a.VerifiedAt = &at
		}
	}
	return nil
}

func proposeSeverity(c *change) error {
	e := c.event
	field, err := parseSeverityFieldName(c.payload)
	if err != nil {
		return err
	}
	value, err := parseSeverityField(c.payload, FieldValue)
	if err != nil {
		return err
	}
	override := c.payload.Get(FieldOverrideReason)
	if field == domain.FieldSeverity {
		if err := CheckActualSeverity(e, value, override); err != nil {
			return err
		}
		if err := checkPotentialAgainstActual(value, e.PotentialSeverity.Current); err != nil {
			return err
		}
	} else if err := checkPotentialAgainstActual(e.Severity.Current, value); err != nil {
		return err
	}

	state := severityState(e, field)
	if state.PendingApproval() {
		return apperrors.ErrDomainRule(fmt.Sprintf("a %s change is already pending approval", field))
	}
	proposal, err := domain.NewSeverityProposal(state.Current, value,
		c.payload.Get(FieldJustification), override, c.actor.ID, c.now)
	if err != nil {
		return apperrors.ErrDomainRule(err.Error())
	}
	next, err := state.Propose(proposal)
	if err != nil {
		return apperrors.ErrDomainRule(err.Error())
	}
	*state = next
	return nil
}

func approveSeverityChange(c *change) error {
	e := c.event
	field, err := parseSeverityFieldName(c.payload)
	if err != nil {
		return err
	}
	state := severityState(e, field)
	if !state.PendingApproval() {
		return apperrors.ErrDomainRule(fmt.Sprintf("no %s change is pending approval", field))
	}
	next, err := state.Approve(c.actor.ID, c.now)
	if err != nil {
		return apperrors.ErrDomainRule(err.Error())
	}
	if field == domain.FieldSeverity {
		if e.FatalityFlagged() && next.Current < domain.SeverityMax {
			return apperrors.ErrDomainRule("a fatality requires severity " + domain.SeverityMax.String())
		}
		if err := checkPotentialAgainstActual(next.Current, e.PotentialSeverity.Current); err != nil {
			return err
		}
	} else if err := checkPotentialAgainstActual(e.Severity.Current, next.Current); err != nil {
		return err
	}
	*state = next
	return nil
}

func rejectSeverityChange(c *change) error {
	field, err := parseSeverityFieldName(c.payload)
	if err != nil {
		return err
	}
	state := severityState(c.event, field)
	if !state.PendingApproval() {
		return apperrors.ErrDomainRule(fmt.Sprintf("no %s change is pending approval", field))
	}
	next, err := state.Reject()
	if err != nil {
		return apperrors.ErrDomainRule(err.Error())
	}
	*state = next
	return nil
}

func addCorrectiveAction(c *change) error {
	assignee := c.payload.Get(FieldAssigneeID)
	c.event.CorrectiveActions = append(c.event.CorrectiveActions, newCorrectiveAction(
		c.payload.Get(FieldDescription), assignee, c.actor.ID, c.now))
	return nil
}

func completeCorrectiveAction(c *change) error {
	a, err := findCorrectiveAction(c)
	if err != nil {
		return err
	}
	if a.Status != domain.CorrectiveActionOpen {
		return apperrors.ErrDomainRule(fmt.Sprintf("corrective action %s is already %s", a.ID, a.Status))
	}
	at := c.now
	a.Status = domain.CorrectiveActionCompleted
	a.CompletedAt = &at
	return nil
}

func verifyCorrectiveAction(c *change) error {
	a, err := findCorrectiveAction(c)
	if err != nil {
		return err
	}
	if a.Status != domain.CorrectiveActionCompleted {
		return apperrors.ErrDomainRule(fmt.Sprintf(
			"corrective action %s must be completed before verification (currently %s)", a.ID, a.Status))
	}
	at := c.now
	a.Status = domain.CorrectiveActionVerified
	a.VerifiedBy = c.actor.ID
	a.VerifiedAt = &at
	return nil
}

func findCorrectiveAction(c *change) (*domain.CorrectiveAction, error) {
	id := c.payload.Get(FieldActionID)
	i := c.event.FindCorrectiveAction(id)
	if i < 0 {
		return nil, apperrors.ErrInvalidPayloadf(FieldActionID, "unknown corrective action "+strconv.Quote(id))
	}
	return &c.event.CorrectiveActions[i], nil
}

func newCorrectiveAction(description, assignee, createdBy string, at time.Time) domain.CorrectiveAction {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return domain.CorrectiveAction{
		ID:          "ca-" + id.String(),
		Description: description,
		AssigneeID:  assignee,
		Status:      domain.CorrectiveActionOpen,
		CreatedBy:   createdBy,
		CreatedAt:   at,
	}
}
