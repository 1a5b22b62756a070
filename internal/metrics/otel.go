package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterInvocationGauge reports the cumulative totals in store as an
// observable gauge on the global meter provider. Call it after the
// provider is installed.
func RegisterInvocationGauge(store *Store) (metric.Registration, error) {
	if store == nil {
		return nil, fmt.Errorf("metrics: store cannot be nil")
	}

	meter := otel.Meter("m5doc/metrics")
	gauge, err := meter.Int64ObservableGauge(
		"m5doc.invocations.total",
		metric.WithDescription("Cumulative knowledge searches by mode (mcp, search)"),
		metric.WithUnit("{invocations}"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to create invocation gauge: %w", err)
	}

	return meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		totals, err := store.Totals(ctx)
		if err != nil {
			return err
		}
		for mode, count := range totals {
			observer.ObserveInt64(gauge, count, metric.WithAttributes(
				attribute.String("mode", string(mode)),
			))
		}
		return nil
	}, gauge)
}
