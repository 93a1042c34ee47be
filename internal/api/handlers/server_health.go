package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/pkg/logger"
	"safeguard.io/safeguard/internal/pkg/worker"
)

const readinessTimeout = 2 * time.Second

// Health is the probe response body.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, Health{Status: "ok"})
}

// GetReadiness handles GET /health/ready.
func (s *Server) GetReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	var mu sync.Mutex
	checks := make(map[string]string, len(s.readiness))
	tasks := make([]worker.Task, len(s.readiness))
	for i, rc := range s.readiness {
		tasks[i] = func(ctx context.Context) {
			result := "ok"
			if err := rc.Check(ctx); err != nil {
				logger.Warn("readiness check failed", zap.String("check", rc.Name), zap.Error(err))
				result = "error"
			}
			mu.Lock()
			checks[rc.Name] = result
			mu.Unlock()
		}
	}
	if err := s.pools.Run(ctx, worker.General, tasks...); err != nil {
		logger.Warn("readiness checks incomplete", zap.Error(err))
	}

	allHealthy := true
	for _, rc := range s.readiness {
		if checks[rc.Name] != "ok" {
			if _, ran := checks[rc.Name]; !ran {
				checks[rc.Name] = "skipped"
			}
			allHealthy = false
		}
	}

	if !allHealthy {
		c.JSON(http.StatusServiceUnavailable, Health{Status: "degraded", Checks: checks})
		return
	}
	c.JSON(http.StatusOK, Health{Status: "ok", Checks: checks})
}
