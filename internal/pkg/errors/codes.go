package errors

import (
	"net/http"
	"strings"
)

// Error code constants.
// Backend logs always in English; clients map codes to localized text.

// Workflow error codes.
const (
	CodeActionNotPermitted  = "ACTION_NOT_PERMITTED"
	CodeInvalidPayload      = "INVALID_PAYLOAD"
	CodeDomainRuleViolation = "DOMAIN_RULE_VIOLATION"
	CodeStateConflict       = "STATE_CONFLICT"
	CodeEventNotFound       = "EVENT_NOT_FOUND"
)

// Notification error codes.
const (
	CodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Validation error codes.
const (
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
	CodeValidationFailed    = "VALIDATION_FAILED"
)

// System error codes.
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Kind is the workflow error taxonomy. Each kind maps to one actionable
// message for the actor.
type Kind string

const (
	KindUnauthorized        Kind = "Unauthorized"
	KindInvalidPayload      Kind = "InvalidPayload"
	KindDomainRuleViolation Kind = "DomainRuleViolation"
	KindConflict            Kind = "Conflict"
	KindNotFound            Kind = "NotFound"
	KindInternal            Kind = "Internal"
)

// Retryable reports whether the calling layer may retry automatically.
// Only Conflict qualifies.
func (k Kind) Retryable() bool {
	return k == KindConflict
}

// Kind maps the error code onto the workflow taxonomy.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	switch e.Code {
	case CodeActionNotPermitted, CodeAuthFailed, CodeTokenExpired, CodeTokenInvalid:
		return KindUnauthorized
	case CodeInvalidPayload, CodeInvalidRequestField, CodeValidationFailed:
		return KindInvalidPayload
	case CodeDomainRuleViolation:
		return KindDomainRuleViolation
	case CodeStateConflict:
		return KindConflict
	case CodeEventNotFound, CodeNotificationNotFound:
		return KindNotFound
	}
	switch e.HTTPStatus {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusBadRequest:
		return KindInvalidPayload
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	}
	return KindInternal
}

// Convenience constructors using predefined codes.

// ErrActionNotPermitted creates an Unauthorized error for an action the actor
// cannot invoke in the event's current status.
func ErrActionNotPermitted(status, action string) *AppError {
	return Forbidden(CodeActionNotPermitted,
		"action "+action+" is not permitted in status "+status+"; re-check your permissions for this step").
		WithParams(map[string]interface{}{"status": status, "action": action})
}

// ErrInvalidPayload creates an InvalidPayload error naming the fields to fill in.
func ErrInvalidPayload(fields ...string) *AppError {
	fieldErrors := make([]FieldError, 0, len(fields))
	for _, f := range fields {
		fieldErrors = append(fieldErrors, FieldError{Field: f, Code: "REQUIRED"})
	}
	return BadRequest(CodeInvalidPayload,
		"fill in the required field(s): "+strings.Join(fields, ", ")).
		WithFieldErrors(fieldErrors)
}

// ErrInvalidPayloadf creates an InvalidPayload error for a malformed field.
func ErrInvalidPayloadf(field, message string) *AppError {
	return BadRequest(CodeInvalidPayload, message).
		WithFieldErrors([]FieldError{{Field: field, Code: "INVALID", Message: message}})
}

// ErrDomainRule creates a DomainRuleViolation carrying the rule text.
func ErrDomainRule(rule string) *AppError {
	return UnprocessableEntity(CodeDomainRuleViolation, rule)
}

// ErrStateConflict creates the user-visible Conflict error.
func ErrStateConflict(err error) *AppError {
	return Wrap(err, CodeStateConflict, "state changed, please refresh and retry", http.StatusConflict)
}

// ErrEventNotFound creates a NotFound error for an event id.
func ErrEventNotFound(eventID string) *AppError {
	return NotFound(CodeEventNotFound, "event not found").
		WithParams(map[string]interface{}{"event_id": eventID})
}

// ErrNotificationNotFound creates a NotFound error for an inbox item.
func ErrNotificationNotFound(id string) *AppError {
	return NotFound(CodeNotificationNotFound, "notification not found").
		WithParams(map[string]interface{}{"notification_id": id})
}

// ErrInvalidRequestFieldf creates a bad request error for forbidden fields.
func ErrInvalidRequestFieldf(fieldName string) *AppError {
	return &AppError{
		Code:       CodeInvalidRequestField,
		Message:    "request contains forbidden field: " + fieldName,
		HTTPStatus: http.StatusBadRequest,
	}
}
