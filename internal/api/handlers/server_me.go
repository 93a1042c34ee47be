package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/notification"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

const defaultInboxLimit = 50

// GetPending handles GET /me/pending.
func (s *Server) GetPending(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		return
	}

	items, err := s.queries.GetPendingFor(c.Request.Context(), actor, domain.Role(c.Query("role")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ListNotifications handles GET /me/notifications.
func (s *Server) ListNotifications(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		return
	}
	if s.inbox == nil {
		c.JSON(http.StatusOK, gin.H{"items": []notification.InboxItem{}})
		return
	}

	limit := defaultInboxLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			_ = c.Error(apperrors.ErrInvalidPayloadf("limit", "limit must be a positive integer"))
			return
		}
		limit = v
	}
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	items, err := s.inbox.List(c.Request.Context(), actor, unreadOnly, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if items == nil {
		items = []notification.InboxItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// MarkNotificationRead handles POST /me/notifications/{notification_id}/read.
func (s *Server) MarkNotificationRead(c *gin.Context) {
	actor, ok := actorFromCtx(c)
	if !ok {
		return
	}
	id := c.Param("notification_id")
	if s.inbox == nil {
		_ = c.Error(apperrors.ErrNotificationNotFound(id))
		return
	}

	if err := s.inbox.MarkRead(c.Request.Context(), actor, id); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			_ = c.Error(apperrors.ErrNotificationNotFound(id))
			return
		}
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
