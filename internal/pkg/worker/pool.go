// Package worker runs Safeguard's background work on bounded ants pools.
//
// Goroutines are not started directly. Request-scoped fan-out goes through
// Run on the general pool; fire-and-forget work such as notification
// delivery goes through Go on the notify pool and sees the service context.
//
// Import Path: safeguard.io/safeguard/internal/pkg/worker
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/pkg/logger"
)

// Name identifies one of the pools.
type Name string

const (
	// General serves request-scoped fan-out such as readiness checks.
	General Name = "general"
	// Notify serves detached notification delivery.
	Notify Name = "notify"
)

var (
	// ErrPoolClosed is returned when submitting after Shutdown.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrUnknownPool is returned for a Name that has no pool.
	ErrUnknownPool = errors.New("unknown worker pool")
)

// Task is a unit of work. It should return when ctx is done.
type Task func(ctx context.Context)

// PoolConfig sizes the pools. A non-positive size leaves that pool unbounded.
type PoolConfig struct {
	GeneralPoolSize int
	NotifyPoolSize  int
}

// Stat is a point-in-time view of one pool.
type Stat struct {
	Name    Name
	Running int
	Free    int
	Cap     int
}

// Pools holds the named pools and the service context handed to detached
// tasks.
type Pools struct {
	pools   map[Name]*ants.Pool
	metrics metric.Registration

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// NewPools builds the general and notify pools. The service context is
// derived from ctx and cancelled by Shutdown.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)
	p := &Pools{
		pools:         make(map[Name]*ants.Pool, 2),
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}

	sizes := []struct {
		name   Name
		size   int
		expiry time.Duration
	}{
		{General, cfg.GeneralPoolSize, 10 * time.Second},
		// Deliveries wait on brokers and mail relays.
		{Notify, cfg.NotifyPoolSize, 30 * time.Second},
	}
	for _, s := range sizes {
		name := s.name
		pool, err := ants.NewPool(s.size,
			ants.WithExpiryDuration(s.expiry),
			ants.WithPanicHandler(func(v any) {
				logger.Error("Worker panic recovered",
					zap.String("pool", string(name)),
					zap.Any("panic", v),
					zap.Stack("stack"),
				)
			}),
		)
		if err != nil {
			_ = p.release(time.Second)
			serviceCancel()
			return nil, fmt.Errorf("create %s pool: %w", name, err)
		}
		p.pools[name] = pool
	}

	if err := registerMetrics(p); err != nil {
		logger.Warn("Worker pool metrics unavailable", zap.Error(err))
	}
	return p, nil
}

func (p *Pools) pool(name Name) (*ants.Pool, error) {
	pool, ok := p.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPool, name)
	}
	if pool.IsClosed() {
		return nil, ErrPoolClosed
	}
	return pool, nil
}

// Go submits a detached task. It receives the service context, so it
// outlives the request that queued it and stops at Shutdown.
func (p *Pools) Go(name Name, task Task) error {
	pool, err := p.pool(name)
	if err != nil {
		return err
	}
	return submit(pool, func() {
		if p.serviceCtx.Err() != nil {
			logger.Debug("Detached task skipped: shutting down", zap.String("pool", string(name)))
			return
		}
		task(p.serviceCtx)
	})
}

// Run executes tasks concurrently on the named pool and waits for all of
// them. A task still queued when ctx ends is skipped. A nil *Pools runs the
// tasks inline, which keeps callers usable without pools.
func (p *Pools) Run(ctx context.Context, name Name, tasks ...Task) error {
	if p == nil {
		for _, task := range tasks {
			task(ctx)
		}
		return ctx.Err()
	}
	pool, err := p.pool(name)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var submitErr error
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}
		wg.Add(1)
		if err := submit(pool, func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			task(ctx)
		}); err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}
	wg.Wait()
	return submitErr
}

func submit(pool *ants.Pool, fn func()) error {
	if err := pool.Submit(fn); err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Stats reports every pool, general first.
func (p *Pools) Stats() []Stat {
	out := make([]Stat, 0, len(p.pools))
	for _, name := range []Name{General, Notify} {
		pool, ok := p.pools[name]
		if !ok {
			continue
		}
		out = append(out, Stat{Name: name, Running: pool.Running(), Free: pool.Free(), Cap: pool.Cap()})
	}
	return out
}

// Shutdown cancels the service context and waits for running tasks until
// ctx ends. Calling it twice is safe.
func (p *Pools) Shutdown(ctx context.Context) error {
	p.serviceCancel()
	if p.metrics != nil {
		if err := p.metrics.Unregister(); err != nil {
			logger.Debug("Worker pool metrics unregister failed", zap.Error(err))
		}
		p.metrics = nil
	}
	wait := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
	}
	return p.release(wait)
}

func (p *Pools) release(wait time.Duration) error {
	if wait <= 0 {
		wait = time.Millisecond
	}
	var errs []error
	for name, pool := range p.pools {
		if pool.IsClosed() {
			continue
		}
		if err := pool.ReleaseTimeout(wait); err != nil {
			errs = append(errs, fmt.Errorf("release %s pool: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
