package observability

import (
	"context"
	"net/http"

	"github.com/m5stack/m5doc/internal/types"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry holds the installed providers
type Telemetry struct {
	Shutdown ShutdownFunc
	// MetricsHandler serves the Prometheus scrape endpoint; nil unless the
	// prometheus metrics exporter is selected
	MetricsHandler http.Handler
}

// Init installs global tracer and meter providers for rootCfg. On error the
// returned Telemetry is still usable and does nothing.
func Init(rootCfg *types.Config) (*Telemetry, error) {
	noop := &Telemetry{Shutdown: func(context.Context) error { return nil }}

	cfg, err := LoadConfig(rootCfg)
	if err != nil {
		return noop, err
	}

	otel.SetTextMapPropagator(defaultPropagator())

	if !cfg.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		mp := sdkmetric.NewMeterProvider()
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		return &Telemetry{Shutdown: newShutdownFunc(
			component{name: "tracer provider", s: tp},
			component{name: "meter provider", s: mp},
		)}, nil
	}

	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return noop, err
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return noop, err
	}

	mp, handler, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return noop, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Telemetry{
		Shutdown: newShutdownFunc(
			component{name: "tracer provider", s: tp},
			component{name: "meter provider", s: mp},
		),
		MetricsHandler: handler,
	}, nil
}
