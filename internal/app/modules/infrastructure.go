package modules

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/api/handlers"
	"safeguard.io/safeguard/internal/config"
	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/infrastructure"
	"safeguard.io/safeguard/internal/pkg/logger"
	"safeguard.io/safeguard/internal/pkg/worker"
	"safeguard.io/safeguard/internal/repository"
	"safeguard.io/safeguard/internal/repository/memory"
	"safeguard.io/safeguard/internal/repository/postgres"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config *config.Config
	DB     *infrastructure.DatabaseClients // nil with the memory store
	Pools  *worker.Pools
	Store  repository.EventStore
	// PGStore is set when events live in PostgreSQL; transaction hooks are
	// registered on it.
	PGStore *postgres.Store
	// Transitions fans committed transitions out to post-commit handlers.
	Transitions *domain.TransitionDispatcher
}

// NewInfrastructure initializes the event store, DB pool and worker pools.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{
		Config:      cfg,
		Transitions: domain.NewTransitionDispatcher(),
	}

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		// Dev-mode: auto-create application tables + River queue tables.
		if cfg.Database.AutoMigrate {
			if err := db.AutoMigrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
		infra.DB = db
		infra.PGStore = postgres.NewStore(db.Pool)
		infra.Store = infra.PGStore
	default:
		infra.Store = memory.New()
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		NotifyPoolSize:  cfg.Worker.NotifyPoolSize,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	infra.Pools = pools
	return infra, nil
}

// Readiness returns the checks for dependencies owned by the infrastructure.
func (i *Infrastructure) Readiness() []handlers.ReadinessCheck {
	if i == nil || i.DB == nil {
		return nil
	}
	return []handlers.ReadinessCheck{{Name: "database", Check: i.DB.Pool.Ping}}
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		if err := i.Pools.Shutdown(context.Background()); err != nil {
			logger.Warn("Worker pools did not drain", zap.Error(err))
		}
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
