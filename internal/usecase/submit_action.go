package usecase

import (
	"context"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/approval"
)

// ActionResult is returned after a transition request.
type ActionResult struct {
	Status   string        `json:"status"`
	NewState *domain.Event `json:"new_state"`
	From     domain.Status `json:"from"`
	To       domain.Status `json:"to"`
	Replay   bool          `json:"replay,omitempty"`
}

// SubmitActionUseCase applies a named action to an event.
type SubmitActionUseCase struct {
	gateway *approval.Gateway
}

// NewSubmitActionUseCase creates a new SubmitActionUseCase.
func NewSubmitActionUseCase(gateway *approval.Gateway) *SubmitActionUseCase {
	return &SubmitActionUseCase{gateway: gateway}
}

// Execute applies action on behalf of actor. A resubmitted identical
// request is acknowledged without a second state change.
func (uc *SubmitActionUseCase) Execute(ctx context.Context, actor domain.Actor, eventID string, action domain.Action, payload map[string]string) (*ActionResult, error) {
	res, err := uc.gateway.Apply(ctx, actor, eventID, action, payload)
	if err != nil {
		return nil, err
	}
	return &ActionResult{
		Status:   "ok",
		NewState: res.Event,
		From:     res.From,
		To:       res.To,
		Replay:   res.Replay,
	}, nil
}
