package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/pkg/logger"
)

const riverCancelGrace = 5 * time.Second

// Start begins consuming notification jobs. With the memory store there is
// no queue and Start does nothing.
func (a *Application) Start(ctx context.Context) error {
	if a.DB == nil || a.DB.RiverClient == nil {
		return nil
	}
	if err := a.DB.RiverClient.Start(ctx); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}
	logger.Info("Notification queue consuming")
	return nil
}

// Shutdown stops the application in reverse build order: job consumption,
// modules (last built first), worker pools, then the database. Failures
// are collected and shutdown continues. Only the first call does work.
func (a *Application) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() { err = a.shutdown(ctx) })
	return err
}

func (a *Application) shutdown(ctx context.Context) error {
	var errs []error

	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(ctx); err != nil {
			// Jobs still running past the deadline are cancelled.
			cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), riverCancelGrace)
			if cancelErr := a.DB.RiverClient.StopAndCancel(cancelCtx); cancelErr != nil {
				err = errors.Join(err, cancelErr)
			}
			cancel()
			errs = append(errs, fmt.Errorf("stop river client: %w", err))
		}
	}

	for i := len(a.Modules) - 1; i >= 0; i-- {
		mod := a.Modules[i]
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s module: %w", mod.Name(), err))
		}
	}

	if a.Pools != nil {
		if err := a.Pools.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain worker pools: %w", err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.Warn("Shutdown finished with errors", zap.Error(err))
	} else {
		logger.Info("Shutdown complete")
	}
	return err
}
