package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"safeguard.io/safeguard/internal/domain"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
	"safeguard.io/safeguard/internal/usecase"
)

// CreateEvent handles POST /events.
func (s *Server) CreateEvent(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		return
	}

	var input usecase.CreateEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(apperrors.ErrInvalidPayloadf("body", "malformed request body: "+err.Error()))
		return
	}

	e, err := s.createEvent.Execute(c.Request.Context(), actor, input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// ListEvents handles GET /events.
func (s *Server) ListEvents(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		return
	}

	items, err := s.queries.ListEvents(c.Request.Context(), actor, parseStatuses(c.QueryArray("status")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetEvent handles GET /events/{event_id}.
func (s *Server) GetEvent(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		return
	}

	view, err := s.queries.GetEvent(c.Request.Context(), actor, c.Param("event_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitAction handles POST /events/{event_id}/actions/{action}.
func (s *Server) SubmitAction(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		return
	}

	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(apperrors.ErrInvalidPayloadf("body", "malformed request body: "+err.Error()))
		return
	}
	payload, err := payloadFromJSON(raw)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := s.submitAction.Execute(c.Request.Context(), actor,
		c.Param("event_id"), domain.Action(c.Param("action")), payload)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAuditTrail handles GET /events/{event_id}/audit.
func (s *Server) GetAuditTrail(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		return
	}

	entries, err := s.queries.GetAuditTrail(c.Request.Context(), actor, c.Param("event_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}
