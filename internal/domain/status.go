package domain

import "fmt"

// EventType distinguishes reactive incident reports from proactive observations.
type EventType string

const (
	EventTypeIncident    EventType = "incident"
	EventTypeObservation EventType = "observation"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == EventTypeIncident || t == EventTypeObservation
}

// ReferencePrefix returns the human-readable reference prefix for the type.
func (t EventType) ReferencePrefix() string {
	if t == EventTypeObservation {
		return "OBS"
	}
	return "INC"
}

// Status is the lifecycle state of an event. The set is closed: every value
// the workflow can produce is declared here.
type Status string

// Incident lifecycle.
const (
	StatusNew                     Status = "new"
	StatusPendingDeptRepReview    Status = "pending_dept_rep_review"
	StatusReturnedToReporter      Status = "returned_to_reporter"
	StatusPendingReview           Status = "pending_review"
	StatusRejected                Status = "rejected"
	StatusReporterDispute         Status = "reporter_dispute"
	StatusPendingManagerApproval  Status = "pending_manager_approval"
	StatusHSSEManagerEscalation   Status = "hsse_manager_escalation"
	StatusInvestigationPending    Status = "investigation_pending"
	StatusInvestigationInProgress Status = "investigation_in_progress"
	StatusPendingClosure          Status = "pending_closure"
	StatusPendingFinalClosure     Status = "pending_final_closure"
	StatusClosed                  Status = "closed"
	StatusInvestigationClosed     Status = "investigation_closed"
)

// Observation lifecycle.
const (
	StatusSubmitted                     Status = "submitted"
	StatusPendingDeptRepApproval        Status = "pending_dept_rep_approval"
	StatusObservationActionsPending     Status = "observation_actions_pending"
	StatusPendingHSSEEscalationReview   Status = "pending_hsse_escalation_review"
	StatusAcceptedAsObservation         Status = "accepted_as_observation"
	StatusUpgradedToIncident            Status = "upgraded_to_incident"
	StatusReturnedToDeptRep             Status = "returned_to_dept_rep"
	StatusPendingDeptRepMandatoryAction Status = "pending_dept_rep_mandatory_action"
	StatusPendingHSSEValidation         Status = "pending_hsse_validation"
	StatusPendingHSSERejectionReview    Status = "pending_hsse_rejection_review"
)

// AllStatuses lists every declared status in lifecycle order.
var AllStatuses = []Status{
	StatusNew,
	StatusPendingDeptRepReview,
	StatusReturnedToReporter,
	StatusPendingReview,
	StatusRejected,
	StatusReporterDispute,
	StatusPendingManagerApproval,
	StatusHSSEManagerEscalation,
	StatusInvestigationPending,
	StatusInvestigationInProgress,
	StatusPendingClosure,
	StatusPendingFinalClosure,
	StatusClosed,
	StatusInvestigationClosed,
	StatusSubmitted,
	StatusPendingDeptRepApproval,
	StatusObservationActionsPending,
	StatusPendingHSSEEscalationReview,
	StatusAcceptedAsObservation,
	StatusUpgradedToIncident,
	StatusReturnedToDeptRep,
	StatusPendingDeptRepMandatoryAction,
	StatusPendingHSSEValidation,
	StatusPendingHSSERejectionReview,
}

var statusSet = func() map[Status]struct{} {
	m := make(map[Status]struct{}, len(AllStatuses))
	for _, s := range AllStatuses {
		m[s] = struct{}{}
	}
	return m
}()

// Valid reports whether s is a declared status.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusInvestigationClosed
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Action is a named request an actor makes against an event.
type Action string

// Status-changing actions.
const (
	ActionSubmit                    Action = "submit"
	ActionResubmit                  Action = "resubmit"
	ActionApprove                   Action = "approve"
	ActionReject                    Action = "reject"
	ActionReturnToReporter          Action = "return_to_reporter"
	ActionDispute                   Action = "dispute"
	ActionUpholdRejection           Action = "uphold_rejection"
	ActionAcceptDispute             Action = "accept_dispute"
	ActionOverride                  Action = "override"
	ActionConfirmRejection          Action = "confirm_rejection"
	ActionStartInvestigation        Action = "start_investigation"
	ActionCloseWithoutInvestigation Action = "close_without_investigation"
	ActionReassignInvestigator      Action = "reassign_investigator"
	ActionSubmitForClosure          Action = "submit_for_closure"
	ActionApproveClosure            Action = "approve_closure"
	ActionReturnToInvestigation     Action = "return_to_investigation"
	ActionFinalClose                Action = "final_close"

	ActionCloseOnSpot         Action = "close_on_spot"
	ActionApproveWithAction   Action = "approve_with_action"
	ActionEscalate            Action = "escalate"
	ActionAcceptAsObservation Action = "accept_as_observation"
	ActionUpgradeToIncident   Action = "upgrade_to_incident"
	ActionReturnToDeptRep     Action = "return_to_dept_rep"
	ActionOverrideRejection   Action = "override_rejection"
	ActionCompleteActions     Action = "complete_actions"
	ActionValidate            Action = "validate"
	ActionRejectValidation    Action = "reject_validation"
)

// Status-preserving actions.
const (
	ActionAssignInvestigator       Action = "assign_investigator"
	ActionProposeSeverity          Action = "propose_severity"
	ActionApproveSeverityChange    Action = "approve_severity_change"
	ActionRejectSeverityChange     Action = "reject_severity_change"
	ActionAddCorrectiveAction      Action = "add_corrective_action"
	ActionCompleteCorrectiveAction Action = "complete_corrective_action"
	ActionVerifyCorrectiveAction   Action = "verify_corrective_action"
)

// ActionCreate is recorded in the audit trail when an event is first stored.
// It is not invokable through the transition table.
const ActionCreate Action = "create"

// AllActions lists every invokable action.
var AllActions = []Action{
	ActionSubmit, ActionResubmit, ActionApprove, ActionReject, ActionReturnToReporter,
	ActionDispute, ActionUpholdRejection, ActionAcceptDispute, ActionOverride,
	ActionConfirmRejection, ActionStartInvestigation, ActionCloseWithoutInvestigation,
	ActionReassignInvestigator, ActionSubmitForClosure, ActionApproveClosure,
	ActionReturnToInvestigation, ActionFinalClose,
	ActionCloseOnSpot, ActionApproveWithAction, ActionEscalate, ActionAcceptAsObservation,
	ActionUpgradeToIncident, ActionReturnToDeptRep, ActionOverrideRejection,
	ActionCompleteActions, ActionValidate, ActionRejectValidation,
	ActionAssignInvestigator, ActionProposeSeverity, ActionApproveSeverityChange,
	ActionRejectSeverityChange, ActionAddCorrectiveAction, ActionCompleteCorrectiveAction,
	ActionVerifyCorrectiveAction,
}

var actionSet = func() map[Action]struct{} {
	m := make(map[Action]struct{}, len(AllActions))
	for _, a := range AllActions {
		m[a] = struct{}{}
	}
	return m
}()

// Valid reports whether a is an invokable action.
func (a Action) Valid() bool {
	_, ok := actionSet[a]
	return ok
}

// ParseAction converts a raw string into an Action.
func ParseAction(raw string) (Action, error) {
	a := Action(raw)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", raw)
	}
	return a, nil
}

// Role is an authorization role code.
type Role string

const (
	// RoleReporter is held by the actor who created the event.
	RoleReporter Role = "reporter"
	// RoleInvestigator is held by the actor currently assigned to investigate.
	RoleInvestigator Role = "investigator"

	RoleDepartmentRepresentative Role = "department_representative"
	RoleHSSEExpert               Role = "hsse_expert"
	RoleManager                  Role = "manager"
	RoleHSSEManager              Role = "hsse_manager"
)

// AllRoles lists every known role code.
var AllRoles = []Role{
	RoleReporter,
	RoleInvestigator,
	RoleDepartmentRepresentative,
	RoleHSSEExpert,
	RoleManager,
	RoleHSSEManager,
}

// Valid reports whether r is a known role code.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Relationship reports whether r is derived from the actor's relation to an
// event rather than held through identity configuration.
func (r Role) Relationship() bool {
	return r == RoleReporter || r == RoleInvestigator
}
