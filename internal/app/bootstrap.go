// Package app is the composition root. Bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"

	"safeguard.io/safeguard/internal/api/handlers"
	"safeguard.io/safeguard/internal/app/modules"
	"safeguard.io/safeguard/internal/config"
	"safeguard.io/safeguard/internal/infrastructure"
	"safeguard.io/safeguard/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module

	stopOnce sync.Once
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	workflowModule, err := modules.NewWorkflowModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init workflow module: %w", err)
	}

	// Registers post-commit handlers and tx hooks; must precede serving.
	notificationModule, err := modules.NewNotificationModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init notification module: %w", err)
	}

	allModules := []modules.Module{workflowModule, notificationModule}
	jwtCfg := modules.NewJWTConfig(cfg)
	server := handlers.NewServer(modules.NewServerDeps(infra, allModules))

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, jwtCfg),
		DB:      infra.DB,
		Pools:   infra.Pools,
		Modules: allModules,
	}, nil
}
