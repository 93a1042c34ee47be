package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// Event is an incident or observation report and the canonical state of its
// workflow. It is only mutated through validated transitions.
type Event struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Reference string    `json:"reference"`
	Type      EventType `json:"event_type"`
	Subtype   string    `json:"subtype,omitempty"`

	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Department  string    `json:"department,omitempty"`
	Location    string    `json:"location,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`

	InjuryClassification       InjuryClassification `json:"injury_classification"`
	EmergencyResponseActivated bool                 `json:"emergency_response_activated"`

	Severity          SeverityState `json:"severity"`
	PotentialSeverity SeverityState `json:"potential_severity"`

	Status              Status     `json:"status"`
	StatusChangedAt     time.Time  `json:"status_changed_at"`
	InvestigationLocked bool       `json:"investigation_locked"`
	ApprovedBy          string     `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`

	ReporterID    string         `json:"reporter_id"`
	ApproverID    string         `json:"approver_id,omitempty"`
	Investigation *Investigation `json:"investigation,omitempty"`

	RejectionReason string `json:"rejection_reason,omitempty"`
	ReturnReason    string `json:"return_reason,omitempty"`
	DisputeReason   string `json:"dispute_reason,omitempty"`
	EvidenceRef     string `json:"evidence_ref,omitempty"`

	CorrectiveActions []CorrectiveAction `json:"corrective_actions,omitempty"`

	LastTransition *TransitionKey `json:"last_transition,omitempty"`
	Version        int64          `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Investigation is the formal investigation attached to an approved event.
type Investigation struct {
	InvestigatorID string     `json:"investigator_id"`
	AssignedBy     string     `json:"assigned_by"`
	AssignedAt     time.Time  `json:"assigned_at"`
	Notes          string     `json:"notes,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
}

// Active reports whether the investigator has started work.
func (i *Investigation) Active() bool {
	return i != nil && i.StartedAt != nil
}

// CorrectiveActionStatus tracks a corrective action through completion and
// HSSE verification.
type CorrectiveActionStatus string

const (
	CorrectiveActionOpen      CorrectiveActionStatus = "open"
	CorrectiveActionCompleted CorrectiveActionStatus = "completed"
	CorrectiveActionVerified  CorrectiveActionStatus = "verified"
)

// CorrectiveAction is a remediation item raised during investigation or
// observation handling.
type CorrectiveAction struct {
	ID          string                 `json:"id"`
	Description string                 `json:"description"`
	AssigneeID  string                 `json:"assignee_id"`
	Status      CorrectiveActionStatus `json:"status"`
	CreatedBy   string                 `json:"created_by"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	VerifiedBy  string                 `json:"verified_by,omitempty"`
	VerifiedAt  *time.Time             `json:"verified_at,omitempty"`
}

// TransitionKey identifies the most recent transition applied to an event.
// A request matching it is a replay.
type TransitionKey struct {
	Action        Action `json:"action"`
	ActorID       string `json:"actor_id"`
	PayloadDigest string `json:"payload_digest"`
}

// FatalityFlagged reports whether the event records a fatality.
func (e *Event) FatalityFlagged() bool {
	return e.InjuryClassification == InjuryFatality
}

// InvestigatorID returns the assigned investigator, if any.
func (e *Event) InvestigatorID() string {
	if e.Investigation == nil {
		return ""
	}
	return e.Investigation.InvestigatorID
}

// Approved reports whether the event cleared manager approval.
func (e *Event) Approved() bool {
	return e.ApprovedBy != ""
}

// FindCorrectiveAction returns the index of the action with id, or -1.
func (e *Event) FindCorrectiveAction(id string) int {
	return slices.IndexFunc(e.CorrectiveActions, func(a CorrectiveAction) bool { return a.ID == id })
}

// Clone returns a deep copy so that stores and transitions never share
// mutable state with callers.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Severity = cloneSeverityState(e.Severity)
	c.PotentialSeverity = cloneSeverityState(e.PotentialSeverity)
	c.ApprovedAt = cloneTime(e.ApprovedAt)
	if e.Investigation != nil {
		inv := *e.Investigation
		inv.StartedAt = cloneTime(e.Investigation.StartedAt)
		c.Investigation = &inv
	}
	if e.CorrectiveActions != nil {
		c.CorrectiveActions = make([]CorrectiveAction, len(e.CorrectiveActions))
		for i, a := range e.CorrectiveActions {
			a.CompletedAt = cloneTime(a.CompletedAt)
			a.VerifiedAt = cloneTime(a.VerifiedAt)
			c.CorrectiveActions[i] = a
		}
	}
	if e.LastTransition != nil {
		k := *e.LastTransition
		c.LastTransition = &k
	}
	return &c
}

// Snapshot captures the audit-relevant view of the event.
func (e *Event) Snapshot() Snapshot {
	s := Snapshot{
		Status:                   e.Status,
		EventType:                e.Type,
		Severity:                 e.Severity.Current,
		SeverityPending:          e.Severity.PendingApproval(),
		PotentialSeverity:        e.PotentialSeverity.Current,
		PotentialSeverityPending: e.PotentialSeverity.PendingApproval(),
		InvestigatorID:           e.InvestigatorID(),
		InvestigationLocked:      e.InvestigationLocked,
		ApprovedBy:               e.ApprovedBy,
	}
	if e.Severity.Pending != nil {
		s.ProposedSeverity = e.Severity.Pending.Proposed
	}
	if e.PotentialSeverity.Pending != nil {
		s.ProposedPotentialSeverity = e.PotentialSeverity.Pending.Proposed
	}
	for _, a := range e.CorrectiveActions {
		if a.Status != CorrectiveActionVerified {
			s.OpenCorrectiveActions++
		}
	}
	return s
}

// ToJSON encodes the event as a JSON document.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event document.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func cloneSeverityState(s SeverityState) SeverityState {
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	s.LastApprovedAt = cloneTime(s.LastApprovedAt)
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
