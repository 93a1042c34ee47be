package workflow

import (
	"strings"

	"safeguard.io/safeguard/internal/domain"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

// InitialStatus returns the status a newly reported event starts in.
func InitialStatus(t domain.EventType) domain.Status {
	if t == domain.EventTypeObservation {
		return domain.StatusSubmitted
	}
	return domain.StatusNew
}

// ValidateNewEvent checks a freshly reported event before it is stored.
// An unset actual severity is filled with the computed minimum.
func ValidateNewEvent(e *domain.Event, overrideReason string) error {
	var missing []string
	if strings.TrimSpace(e.Title) == "" {
		missing = append(missing, "title")
	}
	if e.ReporterID == "" {
		missing = append(missing, "reporter_id")
	}
	if len(missing) > 0 {
		return apperrors.ErrInvalidPayload(missing...)
	}
	if !e.Type.Valid() {
		return apperrors.ErrInvalidPayloadf("event_type", "event_type must be incident or observation")
	}
	if e.InjuryClassification == "" {
		e.InjuryClassification = domain.InjuryNone
	}
	if !e.InjuryClassification.Valid() {
		return apperrors.ErrInvalidPayloadf("injury_classification", "unknown injury classification")
	}

	if !e.Severity.Current.Set() {
		e.Severity = domain.Committed(MinimumSeverity(e))
	}
	if !e.Severity.Current.Valid() {
		return apperrors.ErrInvalidPayloadf(FieldSeverity, "severity must be between 1 and 5")
	}
	if err := CheckActualSeverity(e, e.Severity.Current, strings.TrimSpace(overrideReason)); err != nil {
		return err
	}
	if p := e.PotentialSeverity.Current; p.Set() && !p.Valid() {
		return apperrors.ErrInvalidPayloadf(string(domain.FieldPotentialSeverity), "potential_severity must be between 1 and 5")
	}
	return checkPotentialAgainstActual(e.Severity.Current, e.PotentialSeverity.Current)
}
