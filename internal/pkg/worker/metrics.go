package worker

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName         = "safeguard.worker"
	metricPoolRunning = "safeguard_worker_pool_running"
	metricPoolCap     = "safeguard_worker_pool_capacity"
)

// registerMetrics exports Stats as observable gauges until Shutdown.
func registerMetrics(p *Pools) error {
	meter := otel.Meter(meterName)

	running, err := meter.Int64ObservableGauge(metricPoolRunning,
		metric.WithDescription("Workers currently running a task, by pool"))
	if err != nil {
		return err
	}
	capacity, err := meter.Int64ObservableGauge(metricPoolCap,
		metric.WithDescription("Configured worker count, by pool"))
	if err != nil {
		return err
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, s := range p.Stats() {
			attrs := metric.WithAttributes(attribute.String("pool", string(s.Name)))
			o.ObserveInt64(running, int64(s.Running), attrs)
			o.ObserveInt64(capacity, int64(s.Cap), attrs)
		}
		return nil
	}, running, capacity)
	if err != nil {
		return err
	}
	p.metrics = reg
	return nil
}
