package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"safeguard.io/safeguard/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		raw     string
		want    Severity
		wantErr bool
	}{
		{"3", 3, false},
		{"L5", 5, false},
		{" l1 ", 1, false},
		{"0", SeverityNone, true},
		{"6", SeverityNone, true},
		{"high", SeverityNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSeverity(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNewSeverityProposal_EnforcesInvariant(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := NewSeverityProposal(3, 3, "same", "", "u-1", now)
	require.ErrorIs(t, err, ErrInvalidProposal)

	_, err = NewSeverityProposal(3, 4, "   ", "", "u-1", now)
	require.ErrorIs(t, err, ErrInvalidProposal)

	p, err := NewSeverityProposal(3, 4, " new evidence ", "", "u-1", now)
	require.NoError(t, err)
	require.Equal(t, "new evidence", p.Justification)
}

func TestSeverityState_ProposeApproveReject(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	state := Committed(3)

	p, err := NewSeverityProposal(3, 5, "escalated", "", "u-1", now)
	require.NoError(t, err)

	pending, err := state.Propose(p)
	require.NoError(t, err)
	require.True(t, pending.PendingApproval())
	require.NoError(t, pending.Check())

	_, err = pending.Propose(p)
	require.ErrorIs(t, err, ErrInvalidProposal, "second proposal while pending must be refused")

	rejected, err := pending.Reject()
	require.NoError(t, err)
	require.False(t, rejected.PendingApproval())
	require.Equal(t, Severity(3), rejected.Current)

	approved, err := pending.Approve("mgr-1", now)
	require.NoError(t, err)
	require.Equal(t, Severity(5), approved.Current)
	require.Equal(t, "mgr-1", approved.LastApprovedBy)
	require.NotNil(t, approved.LastApprovedAt)

	_, err = approved.Approve("mgr-1", now)
	require.ErrorIs(t, err, ErrInvalidProposal)
}

func TestEvent_CloneIsDeep(t *testing.T) {
	started := time.Now()
	e := &Event{
		ID:       "evt-1",
		Severity: SeverityState{Current: 2, Pending: &SeverityProposal{Original: 2, Proposed: 3, Justification: "x"}},
		Investigation: &Investigation{
			InvestigatorID: "inv-1",
			StartedAt:      &started,
		},
		CorrectiveActions: []CorrectiveAction{{ID: "ca-1", Status: CorrectiveActionOpen}},
		LastTransition:    &TransitionKey{Action: ActionSubmit},
	}

	c := e.Clone()
	c.Severity.Pending.Proposed = 5
	c.Investigation.InvestigatorID = "inv-2"
	c.CorrectiveActions[0].Status = CorrectiveActionVerified
	c.LastTransition.Action = ActionApprove

	require.Equal(t, Severity(3), e.Severity.Pending.Proposed)
	require.Equal(t, "inv-1", e.Investigation.InvestigatorID)
	require.Equal(t, CorrectiveActionOpen, e.CorrectiveActions[0].Status)
	require.Equal(t, ActionSubmit, e.LastTransition.Action)
}

func TestEvent_SnapshotCountsUnverifiedActions(t *testing.T) {
	e := &Event{
		Status: StatusInvestigationInProgress,
		CorrectiveActions: []CorrectiveAction{
			{ID: "a", Status: CorrectiveActionOpen},
			{ID: "b", Status: CorrectiveActionCompleted},
			{ID: "c", Status: CorrectiveActionVerified},
		},
	}
	require.Equal(t, 2, e.Snapshot().OpenCorrectiveActions)
}

func TestActor_EffectiveRoles(t *testing.T) {
	e := &Event{
		ReporterID:    "u-rep",
		Investigation: &Investigation{InvestigatorID: "u-inv"},
	}

	reporter := Actor{ID: "u-rep", Roles: []Role{RoleInvestigator}}
	require.ElementsMatch(t, []Role{RoleReporter}, reporter.EffectiveRoles(e),
		"relationship roles claimed by the token must be ignored")

	inv := Actor{ID: "u-inv", Roles: []Role{RoleHSSEExpert, RoleHSSEExpert}}
	require.ElementsMatch(t, []Role{RoleHSSEExpert, RoleInvestigator}, inv.EffectiveRoles(e))
}

func TestParseStatusAndAction(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
	_, err := ParseStatus("archived")
	require.Error(t, err)

	for _, a := range AllActions {
		require.True(t, a.Valid(), a)
	}
	require.False(t, ActionCreate.Valid(), "create is audit-only")
	_, err = ParseAction("delete")
	require.Error(t, err)
}

func TestTransitionDispatcher_BestEffort(t *testing.T) {
	d := NewTransitionDispatcher()

	var calls []string
	d.RegisterAll(func(context.Context, *CommittedTransition) error {
		calls = append(calls, "all")
		return nil
	})
	d.Register(ActionSubmit, func(context.Context, *CommittedTransition) error {
		calls = append(calls, "failing")
		return errors.New("boom")
	})
	d.Register(ActionSubmit, func(context.Context, *CommittedTransition) error {
		calls = append(calls, "after")
		return nil
	})

	err := d.Dispatch(context.Background(), &CommittedTransition{
		Event:  &Event{ID: "evt-1"},
		Action: ActionSubmit,
	})
	require.Error(t, err)
	require.Equal(t, []string{"all", "failing", "after"}, calls)

	calls = nil
	require.NoError(t, d.Dispatch(context.Background(), &CommittedTransition{
		Event:  &Event{ID: "evt-1"},
		Action: ActionApprove,
	}))
	require.Equal(t, []string{"all"}, calls)
}
