package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetPermissionTable handles GET /workflow/permissions.
func (s *Server) GetPermissionTable(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.permissions.Entries()})
}
