package domain

import "time"

// Snapshot is the audit view of an event before or after a transition.
type Snapshot struct {
	Status                    Status    `json:"status"`
	EventType                 EventType `json:"event_type"`
	Severity                  Severity  `json:"severity"`
	SeverityPending           bool      `json:"severity_pending"`
	ProposedSeverity          Severity  `json:"proposed_severity,omitempty"`
	PotentialSeverity         Severity  `json:"potential_severity"`
	PotentialSeverityPending  bool      `json:"potential_severity_pending"`
	ProposedPotentialSeverity Severity  `json:"proposed_potential_severity,omitempty"`
	InvestigatorID            string    `json:"investigator_id,omitempty"`
	InvestigationLocked       bool      `json:"investigation_locked"`
	ApprovedBy                string    `json:"approved_by,omitempty"`
	OpenCorrectiveActions     int       `json:"open_corrective_actions"`
}

// AuditEntry is the immutable record of one successful transition.
// Entries are append-only: they are never updated or deleted.
type AuditEntry struct {
	ID        string            `json:"id"`
	EventID   string            `json:"event_id"`
	TenantID  string            `json:"tenant_id"`
	ActorID   string            `json:"actor_id"`
	Action    Action            `json:"action"`
	OldValue  *Snapshot         `json:"old_value,omitempty"`
	NewValue  Snapshot          `json:"new_value"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
