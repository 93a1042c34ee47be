// Package handlers implements the HTTP surface of the workflow service.
//
// Handlers are thin: they bind input, resolve the authenticated actor and
// delegate to use cases. Failures are reported through c.Error and rendered
// by middleware.ErrorHandler.
//
// Import Path: safeguard.io/safeguard/internal/api/handlers
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"safeguard.io/safeguard/internal/api/middleware"
	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/governance/permission"
	"safeguard.io/safeguard/internal/notification"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
	"safeguard.io/safeguard/internal/pkg/worker"
	"safeguard.io/safeguard/internal/usecase"
)

// Inbox is the read side of in-app notifications.
type Inbox interface {
	List(ctx context.Context, actor domain.Actor, unreadOnly bool, limit int) ([]notification.InboxItem, error)
	MarkRead(ctx context.Context, actor domain.Actor, id string) error
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	createEvent  *usecase.CreateEventUseCase
	submitAction *usecase.SubmitActionUseCase
	queries      *usecase.EventQueries
	permissions  *permission.Table
	inbox        Inbox // Optional: nil when the inbox is disabled
	readiness    []ReadinessCheck
	pools        *worker.Pools // Optional: readiness checks run inline when nil
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	CreateEvent  *usecase.CreateEventUseCase
	SubmitAction *usecase.SubmitActionUseCase
	Queries      *usecase.EventQueries
	Permissions  *permission.Table
	Inbox        Inbox
	Readiness    []ReadinessCheck
	Pools        *worker.Pools
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		createEvent:  deps.CreateEvent,
		submitAction: deps.SubmitAction,
		queries:      deps.Queries,
		permissions:  deps.Permissions,
		inbox:        deps.Inbox,
		readiness:    deps.Readiness,
		pools:        deps.Pools,
	}
}

// RegisterRoutes mounts every handler under api, which is expected to be the
// /api/v1 group.
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/health/live", s.GetLiveness)
	api.GET("/health/ready", s.GetReadiness)

	api.POST("/events", s.CreateEvent)
	api.GET("/events",
		middleware.RequireAnyRole(domain.RoleHSSEExpert, domain.RoleHSSEManager),
		s.ListEvents)
	api.GET("/events/:event_id", s.GetEvent)
	api.POST("/events/:event_id/actions/:action", s.SubmitAction)
	api.GET("/events/:event_id/audit", s.GetAuditTrail)

	api.GET("/me/pending", s.GetPending)
	api.GET("/me/notifications", s.ListNotifications)
	api.POST("/me/notifications/:notification_id/read", s.MarkNotificationRead)

	api.GET("/workflow/permissions", s.GetPermissionTable)
}

// actorFromCtx returns the authenticated actor, recording an Unauthorized
// error when there is none.
func actorFromCtx(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c.Request.Context())
	if !ok {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeAuthFailed, "authentication required"))
		return domain.Actor{}, false
	}
	return actor, true
}
