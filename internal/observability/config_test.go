package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m5stack/m5doc/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func TestInitExportsToOTLPHTTP(t *testing.T) {
	var traceRequests atomic.Int32
	var metricRequests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/traces":
			traceRequests.Add(1)
		case "/v1/metrics":
			metricRequests.Add(1)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	cfg := &types.Config{
		OTelEnabled:              true,
		OTelServiceName:          "m5doc-test",
		OTelExporterOTLPEndpoint: server.URL,
		OTelExporterOTLPProtocol: "http/protobuf",
		OTelResourceAttributes:   "service.namespace=m5doc-test,environment=test",
		OTelMetricsExporter:      "otlp",
		OTelTracesSampler:        "always_on",
		OTelTracesSamplerArg:     1.0,
	}

	telemetry, err := Init(cfg)
	require.NoError(t, err)
	assert.Nil(t, telemetry.MetricsHandler)

	ctx := context.Background()
	_, span := otel.Tracer("m5doc/test").Start(ctx, "integration-span")
	span.End()

	meter := otel.Meter("m5doc/test")
	counter, err := meter.Int64Counter("m5doc.test.counter", metric.WithDescription("test counter"))
	require.NoError(t, err)
	counter.Add(ctx, 1)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, telemetry.Shutdown(shutdownCtx))

	require.GreaterOrEqual(t, traceRequests.Load(), int32(1), "no trace export received")
	require.GreaterOrEqual(t, metricRequests.Load(), int32(1), "no metric export received")
}

func TestInitPrometheusMetrics(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(collector.Close)

	telemetry, err := Init(&types.Config{
		OTelEnabled:              true,
		OTelServiceName:          "m5doc-test",
		OTelExporterOTLPEndpoint: collector.URL,
		OTelExporterOTLPProtocol: "http/protobuf",
		OTelMetricsExporter:      "prometheus",
	})
	require.NoError(t, err)
	require.NotNil(t, telemetry.MetricsHandler)
	t.Cleanup(func() { _ = telemetry.Shutdown(context.Background()) })

	counter, err := otel.Meter("m5doc/test").Int64Counter("m5doc.scrape.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	telemetry.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "m5doc_scrape_counter")
}

func TestInitDisabled(t *testing.T) {
	telemetry, err := Init(&types.Config{})
	require.NoError(t, err)
	assert.Nil(t, telemetry.MetricsHandler)
	assert.NoError(t, telemetry.Shutdown(context.Background()))
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.Config
		wantErr bool
	}{
		{name: "disabled needs nothing", cfg: types.Config{}},
		{
			name:    "enabled without endpoint",
			cfg:     types.Config{OTelEnabled: true},
			wantErr: true,
		},
		{
			name:    "http endpoint without scheme",
			cfg:     types.Config{OTelEnabled: true, OTelExporterOTLPEndpoint: "collector:4318"},
			wantErr: true,
		},
		{
			name: "grpc host port",
			cfg:  types.Config{OTelEnabled: true, OTelExporterOTLPEndpoint: "collector:4317", OTelExporterOTLPProtocol: "grpc"},
		},
		{
			name:    "unknown protocol",
			cfg:     types.Config{OTelEnabled: true, OTelExporterOTLPEndpoint: "http://collector:4318", OTelExporterOTLPProtocol: "thrift"},
			wantErr: true,
		},
		{
			name:    "unknown metrics exporter",
			cfg:     types.Config{OTelEnabled: true, OTelExporterOTLPEndpoint: "http://collector:4318", OTelMetricsExporter: "statsd"},
			wantErr: true,
		},
		{
			name: "ratio sampler out of range",
			cfg: types.Config{
				OTelEnabled:              true,
				OTelExporterOTLPEndpoint: "http://collector:4318",
				OTelTracesSampler:        "traceidratio",
				OTelTracesSamplerArg:     2,
			},
			wantErr: true,
		},
		{
			name:    "malformed resource attributes",
			cfg:     types.Config{OTelResourceAttributes: "team"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			got, err := LoadConfig(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "m5doc", got.ResourceAttributes["service.name"])
		})
	}
}
