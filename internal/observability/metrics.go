package observability

import (
	"context"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otlpmetricgrpc "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otlpmetrichttp "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// newMeterProvider builds the provider for cfg.MetricsExporter. The
// returned handler is non-nil only for the prometheus exporter.
func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*sdkmetric.MeterProvider, http.Handler, error) {
	switch cfg.MetricsExporter {
	case metricsExporterNone:
		return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)), nil, nil

	case metricsExporterProm:
		// private registry keeps Go runtime collectors off /metrics
		registry := prom.NewRegistry()
		reader, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("observability: failed to initialize Prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil

	default:
		exporter, err := newMetricExporter(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("observability: failed to create OTLP metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricExportInterval))),
		)
		return mp, nil, nil
	}
}

func newMetricExporter(ctx context.Context, cfg *Config) (sdkmetric.Exporter, error) {
	endpoint, err := resolveEndpoint(cfg.ExporterEndpoint, cfg.ExporterProtocol, signalMetrics)
	if err != nil {
		return nil, err
	}

	if cfg.ExporterProtocol == protocolGRPC {
		options := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint.target)}
		if endpoint.insecure {
			options = append(options, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, options...)
	}

	options := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(endpoint.target)}
	if endpoint.insecure {
		options = append(options, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, options...)
}
