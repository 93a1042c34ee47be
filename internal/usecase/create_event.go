// Package usecase provides application use cases (Clean Architecture).
//
// UseCases are reusable across HTTP, CLI and seed tooling. All writes go
// through the approval gateway.
//
// Import Path: safeguard.io/safeguard/internal/usecase
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/approval"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
	"safeguard.io/safeguard/internal/repository"
	"safeguard.io/safeguard/internal/workflow"
)

// CreateEventInput represents a new incident or observation report.
type CreateEventInput struct {
	Type                       domain.EventType            `json:"event_type"`
	Subtype                    string                      `json:"subtype"`
	Title                      string                      `json:"title"`
	Description                string                      `json:"description"`
	Department                 string                      `json:"department"`
	Location                   string                      `json:"location"`
	OccurredAt                 *time.Time                  `json:"occurred_at"`
	InjuryClassification       domain.InjuryClassification `json:"injury_classification"`
	EmergencyResponseActivated bool                        `json:"emergency_response_activated"`
	Severity                   domain.Severity             `json:"severity"`
	PotentialSeverity          domain.Severity             `json:"potential_severity"`
	OverrideReason             string                      `json:"override_reason"`
}

// maxReferenceAttempts bounds retries on a reference code collision.
const maxReferenceAttempts = 3

// CreateEventUseCase stores a newly reported event.
type CreateEventUseCase struct {
	gateway *approval.Gateway
	now     func() time.Time
}

// NewCreateEventUseCase creates a new CreateEventUseCase.
func NewCreateEventUseCase(gateway *approval.Gateway) *CreateEventUseCase {
	return &CreateEventUseCase{gateway: gateway, now: time.Now}
}

// Execute validates the report and stores it with its creation audit entry.
// The actor becomes the reporter. Incidents start in new, observations in
// submitted.
func (uc *CreateEventUseCase) Execute(ctx context.Context, actor domain.Actor, input CreateEventInput) (*domain.Event, error) {
	if actor.ID == "" || actor.TenantID == "" {
		return nil, apperrors.Unauthorized(apperrors.CodeAuthFailed, "authenticated actor is required")
	}
	now := uc.now().UTC()

	e := &domain.Event{
		TenantID:                   actor.TenantID,
		Type:                       input.Type,
		Subtype:                    strings.TrimSpace(input.Subtype),
		Title:                      strings.TrimSpace(input.Title),
		Description:                input.Description,
		Department:                 input.Department,
		Location:                   input.Location,
		OccurredAt:                 now,
		InjuryClassification:       input.InjuryClassification,
		EmergencyResponseActivated: input.EmergencyResponseActivated,
		Severity:                   domain.Committed(input.Severity),
		PotentialSeverity:          domain.Committed(input.PotentialSeverity),
		Status:                     workflow.InitialStatus(input.Type),
		StatusChangedAt:            now,
		ReporterID:                 actor.ID,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if input.OccurredAt != nil {
		if input.OccurredAt.After(now) {
			return nil, apperrors.ErrInvalidPayloadf("occurred_at", "occurred_at cannot be in the future")
		}
		e.OccurredAt = input.OccurredAt.UTC()
	}
	if err := workflow.ValidateNewEvent(e, input.OverrideReason); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		e.ID = generateID()
		e.Reference = NewReference(e.Type, now)
		created, err := uc.gateway.Create(ctx, actor, e)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("allocate event reference: %w", lastErr)
}

// NewReference builds a human-readable code such as INC-20260401-3F9A0C.
func NewReference(t domain.EventType, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", t.ReferencePrefix(), at.UTC().Format("20060102"), suffix)
}

func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
