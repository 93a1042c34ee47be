// Package notification plans and delivers workflow notifications.
//
// Notices are produced after a transition commits and are delivered
// at most once on a best-effort basis: a failed delivery is logged and
// counted but never affects the transition that caused it.
//
// Import Path: safeguard.io/safeguard/internal/notification
package notification

import (
	"strings"
	"time"

	"safeguard.io/safeguard/internal/domain"
)

// Kind identifies a notification template.
type Kind string

const (
	KindEventSubmitted        Kind = "EVENT_SUBMITTED"
	KindReviewRequired        Kind = "REVIEW_REQUIRED"
	KindReturned              Kind = "RETURNED"
	KindRejected              Kind = "REJECTED"
	KindDisputeRaised         Kind = "DISPUTE_RAISED"
	KindApprovalRequired      Kind = "APPROVAL_REQUIRED"
	KindInvestigatorAssigned  Kind = "INVESTIGATOR_ASSIGNED"
	KindActionAssigned        Kind = "ACTION_ASSIGNED"
	KindClosureRequired       Kind = "CLOSURE_REQUIRED"
	KindSeverityChangePending Kind = "SEVERITY_CHANGE_PENDING"
	KindSeverityChangeDecided Kind = "SEVERITY_CHANGE_DECIDED"
	KindEventClosed           Kind = "EVENT_CLOSED"
)

// Subject returns the lower-case token used in broker subjects.
func (k Kind) Subject() string {
	return strings.ToLower(string(k))
}

// rolePrefix marks a broadcast recipient resolved by the delivery adapter.
const rolePrefix = "role:"

// RoleRecipient addresses every holder of r in the event's tenant.
func RoleRecipient(r domain.Role) string {
	return rolePrefix + string(r)
}

// RecipientRole returns the role of a broadcast recipient.
func RecipientRole(recipient string) (domain.Role, bool) {
	if !strings.HasPrefix(recipient, rolePrefix) {
		return "", false
	}
	return domain.Role(strings.TrimPrefix(recipient, rolePrefix)), true
}

// Notice is one planned notification for one or more recipients.
type Notice struct {
	EventID    string    `json:"event_id"`
	TenantID   string    `json:"tenant_id"`
	Reference  string    `json:"reference"`
	Kind       Kind      `json:"kind"`
	Recipients []string  `json:"recipients"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
