package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"safeguard.io/safeguard/internal/domain"
	apperrors "safeguard.io/safeguard/internal/pkg/errors"
)

// RequireAnyRole returns middleware that admits actors holding at least one
// of roles through identity configuration. Relationship roles never qualify.
func RequireAnyRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, apperrors.Unauthorized(apperrors.CodeAuthFailed, "not authenticated"))
			return
		}
		if slices.ContainsFunc(roles, func(r domain.Role) bool { return !r.Relationship() && actor.HasRole(r) }) {
			c.Next()
			return
		}
		AbortWithError(c, apperrors.Forbidden(apperrors.CodeActionNotPermitted, "insufficient role for this resource"))
	}
}
