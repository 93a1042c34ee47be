package approval

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName                = "safeguard.approval"
	metricTransitionTotal    = "safeguard_transition_total"
	metricConflictTotal      = "safeguard_transition_conflict_total"
	metricTransitionDuration = "safeguard_transition_duration_seconds"
)

var (
	meterOnce         sync.Once
	transitionCounter metric.Int64Counter
	conflictCounter   metric.Int64Counter
	durationHistogram metric.Float64Histogram
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter, err := meter.Int64Counter(
		metricTransitionTotal,
		metric.WithDescription("Transition requests by action and outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	transitionCounter = counter

	conflict, err := meter.Int64Counter(
		metricConflictTotal,
		metric.WithDescription("Optimistic concurrency conflicts and retry exhaustion"),
	)
	if err != nil {
		otel.Handle(err)
	}
	conflictCounter = conflict

	hist, err := meter.Float64Histogram(
		metricTransitionDuration,
		metric.WithDescription("Latency of transition requests including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	durationHistogram = hist
}

// RecordTransition counts one transition request. outcome is "committed",
// "replay" or the error kind.
func RecordTransition(ctx context.Context, action, outcome string, took time.Duration) {
	meterOnce.Do(initMeter)
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	)
	if transitionCounter != nil {
		transitionCounter.Add(ctx, 1, attrs)
	}
	if durationHistogram != nil {
		durationHistogram.Record(ctx, took.Seconds(), attrs)
	}
}

// RecordConflict counts a compare-and-update conflict. reason is "retry" or
// "exhausted".
func RecordConflict(ctx context.Context, action, reason string) {
	meterOnce.Do(initMeter)
	if conflictCounter == nil {
		return
	}
	conflictCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("reason", reason),
	))
}
