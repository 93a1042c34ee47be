package notification

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName           = "safeguard.notification"
	metricDeliveryTotal = "safeguard_notification_delivery_total"
)

var (
	meterOnce       sync.Once
	deliveryCounter metric.Int64Counter
)

func initMeter() {
	counter, err := otel.Meter(meterName).Int64Counter(
		metricDeliveryTotal,
		metric.WithDescription("Notification deliveries by sender, kind and outcome"),
	)
	if err != nil {
		otel.Handle(err)
	}
	deliveryCounter = counter
}

// RecordDelivery counts one delivery attempt.
func RecordDelivery(ctx context.Context, sender string, kind Kind, outcome string) {
	meterOnce.Do(initMeter)
	if deliveryCounter == nil {
		return
	}
	deliveryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sender", sender),
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	))
}
