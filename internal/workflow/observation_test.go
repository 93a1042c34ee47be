package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard.io/safeguard/internal/domain"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

func TestObservation_CloseOnSpot(t *testing.T) {
	s := newStepper(t, newObservation(2))

	_, err := s.try(reporter, domain.ActionCloseOnSpot, nil)
	requireKind(t, err, apperrors.KindInvalidPayload)

	s.do(reporter, domain.ActionCloseOnSpot, map[string]string{FieldEvidenceRef: "photo-123"}, domain.StatusClosed)
	assert.Equal(t, "photo-123", s.event.EvidenceRef)
}

func TestObservation_CloseOnSpotRequiresLowSeverity(t *testing.T) {
	s := newStepper(t, newObservation(3))

	_, err := s.try(reporter, domain.ActionCloseOnSpot, map[string]string{FieldEvidenceRef: "photo-123"})
	requireKind(t, err, apperrors.KindDomainRuleViolation)
	assert.Equal(t, domain.StatusSubmitted, s.event.Status)
}

func TestObservation_ActionPathWithFinalClosure(t *testing.T) {
	s := newStepper(t, newObservation(5))

	s.do(reporter, domain.ActionSubmit, nil, domain.StatusPendingDeptRepApproval)

	_, err := s.try(deptRep, domain.ActionApproveWithAction, map[string]string{FieldActionDescription: "Fence the edge"})
	requireKind(t, err, apperrors.KindInvalidPayload)

	s.do(deptRep, domain.ActionApproveWithAction, map[string]string{
		FieldActionDescription: "Fence the edge", FieldActionAssignee: "u-site",
	}, domain.StatusObservationActionsPending)
	require.Len(t, s.event.CorrectiveActions, 1)

	_, err = s.try(deptRep, domain.ActionCompleteActions, nil)
	requireKind(t, err, apperrors.KindDomainRuleViolation)

	s.do(deptRep, domain.ActionCompleteCorrectiveAction, map[string]string{
		FieldActionID: s.event.CorrectiveActions[0].ID,
	}, domain.StatusObservationActionsPending)
	s.do(deptRep, domain.ActionCompleteActions, nil, domain.StatusPendingHSSEValidation)

	s.do(hsseExpert, domain.ActionValidate, nil, domain.StatusPendingFinalClosure)
	assert.Equal(t, domain.CorrectiveActionVerified, s.event.CorrectiveActions[0].Status)
	assert.Equal(t, hsseExpert.ID, s.event.CorrectiveActions[0].VerifiedBy)

	s.do(hsseManager, domain.ActionFinalClose, nil, domain.StatusClosed)
}

func TestObservation_ValidationClosesBelowFive(t *testing.T) {
	e := newObservation(4)
	e.Status = domain.StatusPendingHSSEValidation
	s := newStepper(t, e)

	s.do(hsseExpert, domain.ActionRejectValidation, map[string]string{FieldReason: "no photo"}, domain.StatusObservationActionsPending)
	s.do(hsseExpert, domain.ActionAddCorrectiveAction, map[string]string{
		FieldDescription: "Take a photo", FieldAssigneeID: deptRep.ID,
	}, domain.StatusObservationActionsPending)
	s.do(deptRep, domain.ActionCompleteCorrectiveAction, map[string]string{
		FieldActionID: s.event.CorrectiveActions[0].ID,
	}, domain.StatusObservationActionsPending)

	_, err := s.try(deptRep, domain.ActionCompleteCorrectiveAction, map[string]string{
		FieldActionID: "ca-missing",
	})
	requireKind(t, err, apperrors.KindInvalidPayload)

	s.do(deptRep, domain.ActionCompleteActions, nil, domain.StatusPendingHSSEValidation)
	s.do(hsseExpert, domain.ActionValidate, nil, domain.StatusClosed)
}

func TestObservation_EscalationOutcomes(t *testing.T) {
	escalated := func(t *testing.T) *stepper {
		e := newObservation(3)
		e.Status = domain.StatusPendingDeptRepApproval
		s := newStepper(t, e)
		s.do(deptRep, domain.ActionEscalate, map[string]string{FieldReason: "recurring hazard"}, domain.StatusPendingHSSEEscalationReview)
		return s
	}

	t.Run("accept as observation", func(t *testing.T) {
		s := escalated(t)
		s.do(hsseExpert, domain.ActionAcceptAsObservation, nil, domain.StatusAcceptedAsObservation)
		s.do(deptRep, domain.ActionApproveWithAction, map[string]string{
			FieldActionDescription: "Toolbox talk", FieldActionAssignee: "u-site",
		}, domain.StatusObservationActionsPending)
	})

	t.Run("return to dept rep", func(t *testing.T) {
		s := escalated(t)
		s.do(hsseExpert, domain.ActionReturnToDeptRep, map[string]string{FieldReason: "handle locally"}, domain.StatusReturnedToDeptRep)
		s.do(deptRep, domain.ActionReject, map[string]string{FieldReason: "not a hazard"}, domain.StatusPendingHSSERejectionReview)
	})

	t.Run("upgrade to incident", func(t *testing.T) {
		s := escalated(t)
		s.do(hsseExpert, domain.ActionUpgradeToIncident, map[string]string{FieldReason: "someone was hurt"}, domain.StatusUpgradedToIncident)
		assert.Equal(t, domain.EventTypeIncident, s.event.Type)
		assert.Equal(t, domain.EventTypeIncident, s.trail[len(s.trail)-1].NewValue.EventType)
		assert.Equal(t, domain.EventTypeObservation, s.trail[len(s.trail)-1].OldValue.EventType)

		s.do(hsseExpert, domain.ActionApprove, map[string]string{FieldSeverity: "3"}, domain.StatusPendingManagerApproval)
		s.do(manager, domain.ActionApprove, nil, domain.StatusInvestigationPending)
	})
}

func TestObservation_OverriddenRejectionRemovesReject(t *testing.T) {
	e := newObservation(3)
	e.Status = domain.StatusPendingDeptRepApproval
	s := newStepper(t, e)

	s.do(deptRep, domain.ActionReject, map[string]string{FieldReason: "out of scope"}, domain.StatusPendingHSSERejectionReview)
	s.do(hsseExpert, domain.ActionOverrideRejection, map[string]string{FieldReason: "must be actioned"}, domain.StatusPendingDeptRepMandatoryAction)
	assert.Empty(t, s.event.RejectionReason)

	_, err := s.try(deptRep, domain.ActionReject, map[string]string{FieldReason: "still out of scope"})
	requireKind(t, err, apperrors.KindUnauthorized)

	available := s.a.AvailableActions(s.event, deptRep, "", true)
	assert.ElementsMatch(t, []domain.Action{domain.ActionApproveWithAction, domain.ActionEscalate}, available)

	s.do(deptRep, domain.ActionApproveWithAction, map[string]string{
		FieldActionDescription: "Repair guard rail", FieldActionAssignee: "u-site",
	}, domain.StatusObservationActionsPending)
}

func TestObservation_ConfirmedRejection(t *testing.T) {
	e := newObservation(3)
	e.Status = domain.StatusPendingHSSERejectionReview
	s := newStepper(t, e)

	s.do(hsseExpert, domain.ActionConfirmRejection, nil, domain.StatusRejected)
	// The reporter of a rejected observation may dispute through the incident path.
	assert.Equal(t, []domain.Action{domain.ActionDispute}, s.a.AvailableActions(s.event, reporter, "", true))
}

func TestObservation_AcceptedDisputeStaysOnObservationTrack(t *testing.T) {
	s := newStepper(t, newObservation(3))

	s.do(reporter, domain.ActionSubmit, nil, domain.StatusPendingDeptRepApproval)
	s.do(deptRep, domain.ActionReject, map[string]string{FieldReason: "out of scope"}, domain.StatusPendingHSSERejectionReview)
	s.do(hsseExpert, domain.ActionConfirmRejection, nil, domain.StatusRejected)
	s.do(reporter, domain.ActionDispute, map[string]string{FieldReason: "hazard is still there"}, domain.StatusReporterDispute)
	s.do(hsseExpert, domain.ActionAcceptDispute, nil, domain.StatusPendingDeptRepMandatoryAction)

	assert.Equal(t, domain.EventTypeObservation, s.event.Type)
	assert.Empty(t, s.event.RejectionReason)

	_, err := s.try(hsseExpert, domain.ActionApprove, map[string]string{FieldSeverity: "3"})
	requireKind(t, err, apperrors.KindUnauthorized)
	_, err = s.try(deptRep, domain.ActionReject, map[string]string{FieldReason: "still out of scope"})
	requireKind(t, err, apperrors.KindUnauthorized)

	s.do(deptRep, domain.ActionApproveWithAction, map[string]string{
		FieldActionDescription: "Barricade the spill", FieldActionAssignee: "u-site",
	}, domain.StatusObservationActionsPending)
}

func TestObservation_ValidationRejectionSkipsRejectionReview(t *testing.T) {
	e := newObservation(3)
	e.Status = domain.StatusPendingHSSEValidation
	s := newStepper(t, e)

	out := s.do(hsseExpert, domain.ActionRejectValidation, map[string]string{FieldReason: "evidence unclear"}, domain.StatusObservationActionsPending)
	assert.Equal(t, domain.StatusPendingHSSEValidation, out.From)
	assert.Equal(t, "evidence unclear", s.event.ReturnReason)
	assert.Empty(t, s.event.RejectionReason)

	for _, entry := range s.trail {
		assert.NotEqual(t, domain.StatusPendingHSSERejectionReview, entry.NewValue.Status)
	}
	assert.Empty(t, s.a.AvailableActions(s.event, hsseExpert, domain.RoleHSSEExpert, true),
		"rejection review actions are not offered after a validation rejection")
}

func TestAvailableActions_RoleFilter(t *testing.T) {
	a := newAuthority(t)
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusPendingReview

	both := domain.Actor{ID: "u-both", TenantID: tenant, Roles: []domain.Role{domain.RoleHSSEExpert, domain.RoleHSSEManager}}

	assert.ElementsMatch(t,
		[]domain.Action{domain.ActionApprove, domain.ActionReject, domain.ActionReturnToReporter},
		a.AvailableActions(e, both, "", true))
	assert.ElementsMatch(t,
		[]domain.Action{
			domain.ActionApprove, domain.ActionApproveSeverityChange, domain.ActionProposeSeverity,
			domain.ActionReject, domain.ActionRejectSeverityChange, domain.ActionReturnToReporter,
		},
		a.AvailableActions(e, both, "", false))
	assert.Empty(t, a.AvailableActions(e, both, domain.RoleHSSEManager, true))
	assert.Empty(t, a.AvailableActions(e, both, domain.RoleManager, true))

	e.Status = domain.StatusRejected
	assert.Equal(t, []domain.Action{domain.ActionDispute}, a.AvailableActions(e, reporter, domain.RoleReporter, true))
	assert.Empty(t, a.AvailableActions(e, reporter, domain.RoleInvestigator, true))

	other := reporter
	other.TenantID = "tenant-b"
	assert.Empty(t, a.AvailableActions(e, other, "", true))
}

func TestPayloadDigest(t *testing.T) {
	a := Payload{"reason": "x", "severity": "3"}
	b := Payload{"severity": " 3 ", "reason": "x", "notes": ""}
	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), Payload{"reason": "y", "severity": "3"}.Digest())
	assert.Equal(t, Payload(nil).Digest(), Payload{}.Digest())

	err := Payload{"reason": "  "}.Require(FieldReason, FieldInvestigatorID)
	requireKind(t, err, apperrors.KindInvalidPayload)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	require.Len(t, appErr.FieldErrors, 2)
}
