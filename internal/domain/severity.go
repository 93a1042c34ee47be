package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Severity is the ordered 1..5 classification of actual or potential harm.
// SeverityNone marks an unset (nullable) value.
type Severity int

const (
	SeverityNone Severity = 0
	SeverityMin  Severity = 1
	SeverityMax  Severity = 5
)

// Valid reports whether s is one of the five levels.
func (s Severity) Valid() bool {
	return s >= SeverityMin && s <= SeverityMax
}

// Set reports whether s carries a value.
func (s Severity) Set() bool { return s != SeverityNone }

func (s Severity) String() string {
	if s == SeverityNone {
		return "none"
	}
	return "L" + strconv.Itoa(int(s))
}

// ParseSeverity accepts "3" or "L3".
func ParseSeverity(raw string) (Severity, error) {
	raw = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(raw)), "L")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return SeverityNone, fmt.Errorf("severity %q is not a number", raw)
	}
	s := Severity(n)
	if !s.Valid() {
		return SeverityNone, fmt.Errorf("severity %d out of range %d..%d", n, SeverityMin, SeverityMax)
	}
	return s, nil
}

// SeverityField names one of the two severity attributes that share the
// propose/approve sub-workflow.
type SeverityField string

const (
	FieldSeverity          SeverityField = "severity"
	FieldPotentialSeverity SeverityField = "potential_severity"
)

// Valid reports whether f names a known severity attribute.
func (f SeverityField) Valid() bool {
	return f == FieldSeverity || f == FieldPotentialSeverity
}

// InjuryClassification drives the computed minimum severity of an event.
type InjuryClassification string

const (
	InjuryNone             InjuryClassification = "none"
	InjuryFirstAid         InjuryClassification = "first_aid"
	InjuryMedicalTreatment InjuryClassification = "medical_treatment"
	InjuryRestrictedWork   InjuryClassification = "restricted_work"
	InjuryLostTime         InjuryClassification = "lost_time_injury"
	InjuryFatality         InjuryClassification = "fatality"
)

// Valid reports whether c is a known classification. The empty value is
// treated as InjuryNone by callers.
func (c InjuryClassification) Valid() bool {
	switch c {
	case InjuryNone, InjuryFirstAid, InjuryMedicalTreatment, InjuryRestrictedWork, InjuryLostTime, InjuryFatality:
		return true
	}
	return false
}

// ErrInvalidProposal is returned when a proposal would violate the pending
// change invariant.
var ErrInvalidProposal = errors.New("invalid severity proposal")

// SeverityProposal is an uncommitted change awaiting an oversight decision.
type SeverityProposal struct {
	Original       Severity  `json:"original"`
	Proposed       Severity  `json:"proposed"`
	Justification  string    `json:"justification"`
	OverrideReason string    `json:"override_reason,omitempty"`
	ProposedBy     string    `json:"proposed_by"`
	ProposedAt     time.Time `json:"proposed_at"`
}

// NewSeverityProposal builds a proposal, enforcing that the proposed value
// differs from the original and that a justification is present.
func NewSeverityProposal(original, proposed Severity, justification, overrideReason, by string, at time.Time) (*SeverityProposal, error) {
	if proposed == original {
		return nil, fmt.Errorf("%w: proposed value equals current value %s", ErrInvalidProposal, original)
	}
	if strings.TrimSpace(justification) == "" {
		return nil, fmt.Errorf("%w: justification is required", ErrInvalidProposal)
	}
	return &SeverityProposal{
		Original:       original,
		Proposed:       proposed,
		Justification:  strings.TrimSpace(justification),
		OverrideReason: strings.TrimSpace(overrideReason),
		ProposedBy:     by,
		ProposedAt:     at,
	}, nil
}

// SeverityState is either committed (Pending == nil) or carries a proposal on
// top of the committed value.
type SeverityState struct {
	Current        Severity          `json:"current"`
	Pending        *SeverityProposal `json:"pending,omitempty"`
	LastApprovedBy string            `json:"last_approved_by,omitempty"`
	LastApprovedAt *time.Time        `json:"last_approved_at,omitempty"`
}

// Committed returns a state holding v with no pending change.
func Committed(v Severity) SeverityState {
	return SeverityState{Current: v}
}

// PendingApproval reports whether a proposal is awaiting a decision.
func (s SeverityState) PendingApproval() bool { return s.Pending != nil }

// Propose places p on top of the committed value.
func (s SeverityState) Propose(p *SeverityProposal) (SeverityState, error) {
	if s.Pending != nil {
		return s, fmt.Errorf("%w: a change is already pending approval", ErrInvalidProposal)
	}
	if p == nil || p.Original != s.Current {
		return s, fmt.Errorf("%w: proposal does not start from the committed value", ErrInvalidProposal)
	}
	s.Pending = p
	return s, nil
}

// Approve commits the pending proposal.
func (s SeverityState) Approve(by string, at time.Time) (SeverityState, error) {
	if s.Pending == nil {
		return s, fmt.Errorf("%w: nothing pending", ErrInvalidProposal)
	}
	s.Current = s.Pending.Proposed
	s.Pending = nil
	s.LastApprovedBy = by
	t := at
	s.LastApprovedAt = &t
	return s, nil
}

// Reject discards the pending proposal, keeping the committed value.
func (s SeverityState) Reject() (SeverityState, error) {
	if s.Pending == nil {
		return s, fmt.Errorf("%w: nothing pending", ErrInvalidProposal)
	}
	s.Current = s.Pending.Original
	s.Pending = nil
	return s, nil
}

// Check validates the pending-change invariant.
func (s SeverityState) Check() error {
	if s.Pending == nil {
		return nil
	}
	if s.Pending.Proposed == s.Pending.Original {
		return fmt.Errorf("%w: pending proposal equals original", ErrInvalidProposal)
	}
	if strings.TrimSpace(s.Pending.Justification) == "" {
		return fmt.Errorf("%w: pending proposal lacks justification", ErrInvalidProposal)
	}
	return nil
}
