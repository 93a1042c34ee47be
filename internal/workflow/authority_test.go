package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/permission"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

const tenant = "tenant-a"

var (
	reporter     = domain.Actor{ID: "u-reporter", TenantID: tenant}
	investigator = domain.Actor{ID: "u-investigator", TenantID: tenant}
	deptRep      = domain.Actor{ID: "u-dept", TenantID: tenant, Roles: []domain.Role{domain.RoleDepartmentRepresentative}}
	hsseExpert   = domain.Actor{ID: "u-hsse", TenantID: tenant, Roles: []domain.Role{domain.RoleHSSEExpert}}
	manager      = domain.Actor{ID: "u-manager", TenantID: tenant, Roles: []domain.Role{domain.RoleManager}}
	hsseManager  = domain.Actor{ID: "u-hsse-manager", TenantID: tenant, Roles: []domain.Role{domain.RoleHSSEManager}}
)

var baseTime = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newAuthority(t *testing.T) *Authority {
	t.Helper()
	table, err := permission.Default()
	require.NoError(t, err)
	a, err := NewAuthority(table)
	require.NoError(t, err)
	return a
}

func newIncident(injury domain.InjuryClassification) *domain.Event {
	return &domain.Event{
		ID:                   "evt-1",
		TenantID:             tenant,
		Reference:            "INC-20260401-ABC123",
		Type:                 domain.EventTypeIncident,
		Title:                "Slip on wet floor",
		InjuryClassification: injury,
		Severity:             domain.Committed(1),
		Status:               domain.StatusNew,
		ReporterID:           reporter.ID,
		Version:              1,
		CreatedAt:            baseTime,
	}
}

func newObservation(severity domain.Severity) *domain.Event {
	e := newIncident(domain.InjuryNone)
	e.Type = domain.EventTypeObservation
	e.Reference = "OBS-20260401-ABC123"
	e.Status = domain.StatusSubmitted
	e.Severity = domain.Committed(severity)
	return e
}

// stepper drives an event through successive transitions, failing the test
// on the first error.
type stepper struct {
	t     *testing.T
	a     *Authority
	event *domain.Event
	clock time.Time
	trail []domain.AuditEntry
}

func newStepper(t *testing.T, e *domain.Event) *stepper {
	return &stepper{t: t, a: newAuthority(t), event: e, clock: baseTime}
}

func (s *stepper) try(actor domain.Actor, action domain.Action, payload map[string]string) (*Outcome, error) {
	s.clock = s.clock.Add(time.Minute)
	out, err := s.a.Transition(s.event, actor, action, payload, s.clock)
	if err == nil && !out.Replay {
		s.event = out.Event
		s.trail = append(s.trail, out.Audit)
	}
	return out, err
}

func (s *stepper) do(actor domain.Actor, action domain.Action, payload map[string]string, want domain.Status) *Outcome {
	s.t.Helper()
	out, err := s.try(actor, action, payload)
	require.NoError(s.t, err, "%s by %s in %s", action, actor.ID, s.event.Status)
	require.Equal(s.t, want, out.To)
	require.Equal(s.t, want, s.event.Status)
	return out
}

func requireKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperrors.KindOf(err), "error: %v", err)
}

func TestNewAuthority_RejectsMismatchedTable(t *testing.T) {
	table, err := permission.Parse([]byte("new:\n  submit: [reporter]\n"))
	require.NoError(t, err)
	_, err = NewAuthority(table)
	require.Error(t, err)

	_, err = NewAuthority(nil)
	require.Error(t, err)
}

func TestTransition_UndefinedPairsAreUnauthorized(t *testing.T) {
	a := newAuthority(t)
	everyone := domain.Actor{
		ID:       reporter.ID,
		TenantID: tenant,
		Roles: []domain.Role{
			domain.RoleDepartmentRepresentative, domain.RoleHSSEExpert,
			domain.RoleManager, domain.RoleHSSEManager,
		},
	}

	checked := 0
	for _, status := range domain.AllStatuses {
		for _, action := range domain.AllActions {
			if _, ok := a.Table().Roles(status, action); ok {
				continue
			}
			e := newIncident(domain.InjuryNone)
			e.Status = status
			e.Investigation = &domain.Investigation{InvestigatorID: everyone.ID}
			before := e.Clone()

			out, err := a.Transition(e, everyone, action, map[string]string{
				FieldReason: "r", FieldSeverity: "3", FieldInvestigatorID: "u-x",
			}, baseTime)
			require.Nil(t, out)
			requireKind(t, err, apperrors.KindUnauthorized)
			require.Equal(t, before, e, "%s/%s must leave the event unchanged", status, action)
			checked++
		}
	}
	assert.Greater(t, checked, 100)
}

func TestTransition_RoleMismatchIsUnauthorized(t *testing.T) {
	s := newStepper(t, newIncident(domain.InjuryNone))

	_, err := s.try(hsseExpert, domain.ActionSubmit, nil)
	requireKind(t, err, apperrors.KindUnauthorized)

	// A token claiming the reporter role does not make a stranger the reporter.
	impostor := domain.Actor{ID: "u-other", TenantID: tenant, Roles: []domain.Role{domain.RoleReporter}}
	_, err = s.try(impostor, domain.ActionSubmit, nil)
	requireKind(t, err, apperrors.KindUnauthorized)
	assert.Equal(t, domain.StatusNew, s.event.Status)
}

func TestTransition_OtherTenantIsNotFound(t *testing.T) {
	a := newAuthority(t)
	stranger := reporter
	stranger.TenantID = "tenant-b"

	_, err := a.Transition(newIncident(domain.InjuryNone), stranger, domain.ActionSubmit, nil, baseTime)
	requireKind(t, err, apperrors.KindNotFound)
}

func TestTransition_StandardIncidentPath(t *testing.T) {
	s := newStepper(t, newIncident(domain.InjuryMedicalTreatment))

	s.do(reporter, domain.ActionSubmit, nil, domain.StatusPendingDeptRepReview)
	s.do(deptRep, domain.ActionApprove, nil, domain.StatusPendingReview)
	s.do(hsseExpert, domain.ActionApprove, map[string]string{FieldSeverity: "3"}, domain.StatusPendingManagerApproval)
	assert.Equal(t, domain.Severity(3), s.event.Severity.Current)

	s.do(manager, domain.ActionApprove, nil, domain.StatusInvestigationPending)
	assert.Equal(t, manager.ID, s.event.ApprovedBy)
	require.NotNil(t, s.event.ApprovedAt)

	s.do(hsseManager, domain.ActionAssignInvestigator, map[string]string{FieldInvestigatorID: investigator.ID}, domain.StatusInvestigationPending)
	s.do(investigator, domain.ActionStartInvestigation, nil, domain.StatusInvestigationInProgress)
	assert.True(t, s.event.Investigation.Active())

	s.do(investigator, domain.ActionAddCorrectiveAction, map[string]string{
		FieldDescription: "Install anti-slip mats", FieldAssigneeID: "u-facilities",
	}, domain.StatusInvestigationInProgress)
	require.Len(t, s.event.CorrectiveActions, 1)
	actionID := s.event.CorrectiveActions[0].ID

	_, err := s.try(investigator, domain.ActionSubmitForClosure, nil)
	requireKind(t, err, apperrors.KindDomainRuleViolation)

	assignee := domain.Actor{ID: "u-facilities", TenantID: tenant}
	s.do(assignee, domain.ActionCompleteCorrectiveAction, map[string]string{FieldActionID: actionID}, domain.StatusInvestigationInProgress)
	s.do(hsseExpert, domain.ActionVerifyCorrectiveAction, map[string]string{FieldActionID: actionID}, domain.StatusInvestigationInProgress)

	s.do(investigator, domain.ActionSubmitForClosure, nil, domain.StatusPendingClosure)
	assert.True(t, s.event.InvestigationLocked)
	s.do(hsseManager, domain.ActionApproveClosure, nil, domain.StatusClosed)

	statusChanges := 0
	for _, entry := range s.trail {
		require.NotNil(t, entry.OldValue)
		if entry.OldValue.Status != entry.NewValue.Status {
			statusChanges++
		}
	}
	assert.Equal(t, 7, statusChanges)

	first := s.trail[0]
	assert.Equal(t, reporter.ID, first.ActorID)
	assert.Equal(t, domain.StatusNew, first.OldValue.Status)
	assert.Equal(t, domain.StatusPendingDeptRepReview, first.NewValue.Status)
	last := s.trail[len(s.trail)-1]
	assert.Equal(t, hsseManager.ID, last.ActorID)
	assert.Equal(t, domain.StatusPendingClosure, last.OldValue.Status)
	assert.Equal(t, domain.StatusClosed, last.NewValue.Status)
}

func TestTransition_SeverityFiveNeedsFinalClosure(t *testing.T) {
	e := newIncident(domain.InjuryFatality)
	e.Status = domain.StatusPendingClosure
	e.Severity = domain.Committed(5)
	e.ApprovedBy = manager.ID
	s := newStepper(t, e)

	s.do(hsseManager, domain.ActionApproveClosure, nil, domain.StatusPendingFinalClosure)
	s.do(hsseManager, domain.ActionFinalClose, nil, domain.StatusClosed)
	assert.True(t, s.event.Status.Terminal())
}

func TestTransition_RejectionAndDispute(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusPendingReview
	s := newStepper(t, e)

	_, err := s.try(hsseExpert, domain.ActionReject, nil)
	requireKind(t, err, apperrors.KindInvalidPayload)

	s.do(hsseExpert, domain.ActionReject, map[string]string{FieldReason: "insufficient evidence"}, domain.StatusRejected)
	assert.Equal(t, "insufficient evidence", s.event.RejectionReason)
	s.do(reporter, domain.ActionDispute, map[string]string{FieldReason: "photos attached"}, domain.StatusReporterDispute)
	s.do(hsseExpert, domain.ActionUpholdRejection, nil, domain.StatusRejected)

	rejections := 0
	for _, entry := range s.trail {
		if entry.NewValue.Status == domain.StatusRejected {
			rejections++
		}
	}
	assert.Equal(t, 2, rejections)
	assert.Equal(t, "insufficient evidence", s.trail[0].Details[FieldReason])
}

func TestTransition_AcceptedDisputeReturnsToReview(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusReporterDispute
	e.RejectionReason = "insufficient evidence"
	s := newStepper(t, e)

	s.do(hsseExpert, domain.ActionAcceptDispute, nil, domain.StatusPendingReview)
	assert.Empty(t, s.event.RejectionReason)
}

func TestTransition_ManagerRejectionEscalates(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusPendingManagerApproval
	s := newStepper(t, e)

	s.do(manager, domain.ActionReject, map[string]string{FieldReason: "not work related"}, domain.StatusHSSEManagerEscalation)
	s.do(hsseManager, domain.ActionOverride, map[string]string{FieldReason: "site policy"}, domain.StatusInvestigationPending)
	assert.Equal(t, hsseManager.ID, s.event.ApprovedBy)

	e2 := newIncident(domain.InjuryNone)
	e2.Status = domain.StatusHSSEManagerEscalation
	s2 := newStepper(t, e2)
	s2.do(hsseManager, domain.ActionConfirmRejection, map[string]string{FieldReason: "agreed"}, domain.StatusRejected)
}

func TestTransition_InvestigationRules(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusInvestigationPending
	e.ApprovedBy = manager.ID
	s := newStepper(t, e)

	_, err := s.try(hsseManager, domain.ActionAssignInvestigator, map[string]string{FieldInvestigatorID: reporter.ID})
	requireKind(t, err, apperrors.KindDomainRuleViolation)

	_, err = s.try(investigator, domain.ActionStartInvestigation, nil)
	requireKind(t, err, apperrors.KindUnauthorized)

	s.do(hsseExpert, domain.ActionAssignInvestigator, map[string]string{FieldInvestigatorID: investigator.ID}, domain.StatusInvestigationPending)
	s.do(investigator, domain.ActionStartInvestigation, nil, domain.StatusInvestigationInProgress)

	_, err = s.try(hsseManager, domain.ActionReassignInvestigator, map[string]string{FieldInvestigatorID: "u-new"})
	requireKind(t, err, apperrors.KindInvalidPayload)

	s.do(hsseManager, domain.ActionReassignInvestigator, map[string]string{
		FieldInvestigatorID: "u-new", FieldReason: "workload",
	}, domain.StatusInvestigationPending)
	assert.Equal(t, "u-new", s.event.InvestigatorID())
	assert.False(t, s.event.Investigation.Active())

	_, err = s.try(investigator, domain.ActionStartInvestigation, nil)
	requireKind(t, err, apperrors.KindUnauthorized)

	s.do(hsseManager, domain.ActionCloseWithoutInvestigation, map[string]string{FieldReason: "duplicate"}, domain.StatusInvestigationClosed)
	assert.Empty(t, s.a.AvailableActions(s.event, hsseManager, "", false))
}

func TestTransition_StartRequiresApproval(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusInvestigationPending
	e.Investigation = &domain.Investigation{InvestigatorID: investigator.ID}
	s := newStepper(t, e)

	_, err := s.try(investigator, domain.ActionStartInvestigation, nil)
	requireKind(t, err, apperrors.KindDomainRuleViolation)
}

func TestTransition_ClosureReturnUnlocks(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusPendingClosure
	e.InvestigationLocked = true
	s := newStepper(t, e)

	s.do(hsseManager, domain.ActionReturnToInvestigation, map[string]string{FieldReason: "missing RCA"}, domain.StatusInvestigationInProgress)
	assert.False(t, s.event.InvestigationLocked)
}

func TestTransition_ReturnAndResubmit(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusPendingDeptRepReview
	s := newStepper(t, e)

	s.do(deptRep, domain.ActionReturnToReporter, map[string]string{FieldReason: "add location"}, domain.StatusReturnedToReporter)
	assert.Equal(t, "add location", s.event.ReturnReason)
	s.do(reporter, domain.ActionResubmit, nil, domain.StatusPendingDeptRepReview)
	assert.Empty(t, s.event.ReturnReason)
}

func TestTransition_ReplayIsNoOp(t *testing.T) {
	s := newStepper(t, newIncident(domain.InjuryNone))

	first := s.do(reporter, domain.ActionSubmit, nil, domain.StatusPendingDeptRepReview)
	require.False(t, first.Replay)

	second, err := s.try(reporter, domain.ActionSubmit, nil)
	require.NoError(t, err)
	assert.True(t, second.Replay)
	assert.Equal(t, first.Event, second.Event)
	assert.Equal(t, domain.AuditEntry{}, second.Audit)
	assert.Len(t, s.trail, 1)

	// A different payload is a new request, not a replay.
	_, err = s.try(reporter, domain.ActionSubmit, map[string]string{"note": "again"})
	requireKind(t, err, apperrors.KindUnauthorized)
}

func TestTransition_FatalityForcesMaximumSeverity(t *testing.T) {
	allRoles := []domain.Role{
		domain.RoleDepartmentRepresentative, domain.RoleHSSEExpert,
		domain.RoleManager, domain.RoleHSSEManager,
	}
	actors := []domain.Actor{
		hsseExpert,
		investigator,
		{ID: "u-all", TenantID: tenant, Roles: allRoles},
	}

	for _, actor := range actors {
		for v := domain.SeverityMin; v < domain.SeverityMax; v++ {
			t.Run(fmt.Sprintf("%s/assign/%s", actor.ID, v), func(t *testing.T) {
				a := newAuthority(t)
				e := newIncident(domain.InjuryFatality)
				e.Status = domain.StatusPendingReview
				e.Severity = domain.Committed(5)
				_, err := a.Transition(e, actor, domain.ActionApprove, map[string]string{
					FieldSeverity: v.String(), FieldOverrideReason: "manager insisted",
				}, baseTime)
				if actor.HasRole(domain.RoleHSSEExpert) {
					requireKind(t, err, apperrors.KindDomainRuleViolation)
				} else {
					requireKind(t, err, apperrors.KindUnauthorized)
				}
			})
			t.Run(fmt.Sprintf("%s/propose/%s", actor.ID, v), func(t *testing.T) {
				a := newAuthority(t)
				e := newIncident(domain.InjuryFatality)
				e.Status = domain.StatusInvestigationInProgress
				e.Severity = domain.Committed(5)
				e.ApprovedBy = manager.ID
				e.Investigation = &domain.Investigation{InvestigatorID: investigator.ID}
				for _, override := range []string{"", "documented rationale"} {
					_, err := a.Transition(e, actor, domain.ActionProposeSeverity, map[string]string{
						FieldField: string(domain.FieldSeverity), FieldValue: v.String(),
						FieldJustification: "re-assessed", FieldOverrideReason: override,
					}, baseTime)
					if actor.HasRole(domain.RoleHSSEExpert) || actor.ID == investigator.ID {
						requireKind(t, err, apperrors.KindDomainRuleViolation)
					} else {
						requireKind(t, err, apperrors.KindUnauthorized)
					}
				}
			})
		}
	}
}

func TestTransition_BelowMinimumSeverityOverride(t *testing.T) {
	e := newIncident(domain.InjuryLostTime)
	e.Status = domain.StatusInvestigationInProgress
	e.Severity = domain.Committed(4)
	e.ApprovedBy = manager.ID
	e.Investigation = &domain.Investigation{InvestigatorID: investigator.ID}
	require.Equal(t, domain.Severity(4), MinimumSeverity(e))
	s := newStepper(t, e)

	_, err := s.try(investigator, domain.ActionProposeSeverity, map[string]string{
		FieldField: "severity", FieldValue: "2", FieldJustification: "minor in hindsight",
	})
	requireKind(t, err, apperrors.KindInvalidPayload)
	assert.False(t, s.event.Severity.PendingApproval())

	s.do(investigator, domain.ActionProposeSeverity, map[string]string{
		FieldField: "severity", FieldValue: "2", FieldJustification: "minor in hindsight",
		FieldOverrideReason: "documented rationale",
	}, domain.StatusInvestigationInProgress)
	require.True(t, s.event.Severity.PendingApproval())
	assert.Equal(t, domain.Severity(2), s.event.Severity.Pending.Proposed)
	assert.Equal(t, domain.Severity(4), s.event.Severity.Current)
	assert.Equal(t, "documented rationale", s.event.Severity.Pending.OverrideReason)
}

func TestTransition_ProposeThenRejectRestoresSeverity(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusPendingManagerApproval
	e.Severity = domain.Committed(3)
	s := newStepper(t, e)

	s.do(hsseExpert, domain.ActionProposeSeverity, map[string]string{
		FieldField: "severity", FieldValue: "4", FieldJustification: "second casualty found",
	}, domain.StatusPendingManagerApproval)
	require.True(t, s.event.Severity.PendingApproval())

	_, err := s.try(hsseExpert, domain.ActionProposeSeverity, map[string]string{
		FieldField: "severity", FieldValue: "5", FieldJustification: "worse",
	})
	requireKind(t, err, apperrors.KindDomainRuleViolation)

	s.do(hsseManager, domain.ActionRejectSeverityChange, map[string]string{FieldField: "severity"}, domain.StatusPendingManagerApproval)
	assert.Equal(t, domain.Severity(3), s.event.Severity.Current)
	assert.False(t, s.event.Severity.PendingApproval())

	last := s.trail[len(s.trail)-1]
	assert.True(t, last.OldValue.SeverityPending)
	assert.False(t, last.NewValue.SeverityPending)
}

func TestTransition_ProposeThenApproveCommits(t *testing.T) {
	e := newIncident(domain.InjuryNone)
	e.Status = domain.StatusPendingReview
	e.Severity = domain.Committed(2)
	s := newStepper(t, e)

	_, err := s.try(hsseExpert, domain.ActionProposeSeverity, map[string]string{
		FieldField: "severity", FieldValue: "2", FieldJustification: "same",
	})
	requireKind(t, err, apperrors.KindDomainRuleViolation)

	_, err = s.try(hsseManager, domain.ActionApproveSeverityChange, map[string]string{FieldField: "severity"})
	requireKind(t, err, apperrors.KindDomainRuleViolation)

	s.do(hsseExpert, domain.ActionProposeSeverity, map[string]string{
		FieldField: "potential_severity", FieldValue: "4", FieldJustification: "could have been worse",
	}, domain.StatusPendingReview)
	s.do(hsseManager, domain.ActionApproveSeverityChange, map[string]string{FieldField: "potential_severity"}, domain.StatusPendingReview)
	assert.Equal(t, domain.Severity(4), s.event.PotentialSeverity.Current)
	assert.Equal(t, hsseManager.ID, s.event.PotentialSeverity.LastApprovedBy)

	// Actual severity may not exceed the committed potential severity.
	_, err = s.try(hsseExpert, domain.ActionApprove, map[string]string{FieldSeverity: "5"})
	requireKind(t, err, apperrors.KindDomainRuleViolation)

	_, err = s.try(hsseExpert, domain.ActionProposeSeverity, map[string]string{
		FieldField: "potential_severity", FieldValue: "1", FieldJustification: "lower",
	})
	requireKind(t, err, apperrors.KindDomainRuleViolation)
}

func TestTransition_AssignSeverityBelowMinimum(t *testing.T) {
	e := newIncident(domain.InjuryFirstAid)
	e.EmergencyResponseActivated = true
	e.Status = domain.StatusPendingReview
	require.Equal(t, domain.Severity(3), MinimumSeverity(e))
	s := newStepper(t, e)

	_, err := s.try(hsseExpert, domain.ActionApprove, map[string]string{FieldSeverity: "2"})
	requireKind(t, err, apperrors.KindInvalidPayload)

	_, err = s.try(hsseExpert, domain.ActionApprove, map[string]string{FieldSeverity: "L9"})
	requireKind(t, err, apperrors.KindInvalidPayload)

	s.do(hsseExpert, domain.ActionApprove, map[string]string{
		FieldSeverity: "2", FieldOverrideReason: "responders were precautionary",
	}, domain.StatusPendingManagerApproval)
	assert.Equal(t, domain.Severity(2), s.event.Severity.Current)
}

func TestMinimumSeverity(t *testing.T) {
	tests := []struct {
		injury    domain.InjuryClassification
		emergency bool
		want      domain.Severity
	}{
		{domain.InjuryNone, false, 1},
		{"", false, 1},
		{domain.InjuryFirstAid, false, 2},
		{domain.InjuryMedicalTreatment, false, 3},
		{domain.InjuryRestrictedWork, false, 3},
		{domain.InjuryLostTime, false, 4},
		{domain.InjuryFatality, false, 5},
		{domain.InjuryNone, true, 3},
		{domain.InjuryLostTime, true, 4},
	}
	for _, tt := range tests {
		e := &domain.Event{InjuryClassification: tt.injury, EmergencyResponseActivated: tt.emergency}
		assert.Equal(t, tt.want, MinimumSeverity(e), "%s emergency=%v", tt.injury, tt.emergency)
	}
}
