package workflow

import (
	"fmt"

	"safeguard.io/safeguard/internal/domain"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

// MinimumSeverity derives the lowest acceptable actual severity from the
// injury classification and emergency response flag.
func MinimumSeverity(e *domain.Event) domain.Severity {
	var floor domain.Severity
	switch e.InjuryClassification {
	case domain.InjuryFatality:
		floor = 5
	case domain.InjuryLostTime:
		floor = 4
	case domain.InjuryMedicalTreatment, domain.InjuryRestrictedWork:
		floor = 3
	case domain.InjuryFirstAid:
		floor = 2
	default:
		floor = domain.SeverityMin
	}
	if e.EmergencyResponseActivated && floor < 3 {
		floor = 3
	}
	return floor
}

// parseSeverityField reads a 1..5 severity from the payload.
func parseSeverityField(p Payload, field string) (domain.Severity, error) {
	v, err := domain.ParseSeverity(p.Get(field))
	if err != nil {
		return domain.SeverityNone, apperrors.ErrInvalidPayloadf(field, err.Error())
	}
	return v, nil
}

// CheckActualSeverity applies the actual-severity rules to value. A
// fatality-flagged event refuses anything below the maximum regardless of
// override; otherwise a value below the computed minimum needs an override
// reason.
func CheckActualSeverity(e *domain.Event, value domain.Severity, overrideReason string) error {
	if e.FatalityFlagged() && value < domain.SeverityMax {
		return apperrors.ErrDomainRule(fmt.Sprintf(
			"a fatality requires severity %s; %s is not allowed", domain.SeverityMax, value))
	}
	if floor := MinimumSeverity(e); value < floor && overrideReason == "" {
		return apperrors.ErrInvalidPayloadf(FieldOverrideReason, fmt.Sprintf(
			"severity %s is below the computed minimum %s; fill in override_reason", value, floor))
	}
	return nil
}

// checkPotentialAgainstActual enforces potential >= actual when both are set.
func checkPotentialAgainstActual(actual, potential domain.Severity) error {
	if potential.Set() && actual.Set() && potential < actual {
		return apperrors.ErrDomainRule(fmt.Sprintf(
			"potential severity %s cannot be lower than actual severity %s", potential, actual))
	}
	return nil
}

// severityState returns the state backing field.
func severityState(e *domain.Event, field domain.SeverityField) *domain.SeverityState {
	if field == domain.FieldPotentialSeverity {
		return &e.PotentialSeverity
	}
	return &e.Severity
}

func parseSeverityFieldName(p Payload) (domain.SeverityField, error) {
	f := domain.SeverityField(p.Get(FieldField))
	if !f.Valid() {
		return "", apperrors.ErrInvalidPayloadf(FieldField,
			fmt.Sprintf("field must be %q or %q", domain.FieldSeverity, domain.FieldPotentialSeverity))
	}
	return f, nil
}
