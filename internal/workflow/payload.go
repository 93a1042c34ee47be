package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

// Payload field names.
const (
	FieldReason            = "reason"
	FieldSeverity          = "severity"
	FieldOverrideReason    = "override_reason"
	FieldInvestigatorID    = "investigator_id"
	FieldNotes             = "notes"
	FieldEvidenceRef       = "evidence_ref"
	FieldActionDescription = "action_description"
	FieldActionAssignee    = "action_assignee"
	FieldField             = "field"
	FieldValue             = "value"
	FieldJustification     = "justification"
	FieldDescription       = "description"
	FieldAssigneeID        = "assignee_id"
	FieldActionID          = "action_id"
)

// Payload carries the string fields supplied with an action.
type Payload map[string]string

// Get returns the trimmed value of key.
func (p Payload) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Require fails with InvalidPayload naming every missing or blank field.
func (p Payload) Require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if p.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return apperrors.ErrInvalidPayload(missing...)
	}
	return nil
}

// Details returns the non-empty trimmed fields for the audit entry.
func (p Payload) Details() map[string]string {
	out := make(map[string]string, len(p))
	for k := range p {
		if v := p.Get(k); v != "" {
			out[k] = v
		}
	}
	return out
}

// Digest is a stable fingerprint of the payload used for replay detection.
// Blank fields do not contribute.
func (p Payload) Digest() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if p.Get(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(p.Get(k)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
