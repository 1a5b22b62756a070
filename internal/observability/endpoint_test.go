package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		protocol string
		signal   string
		want     otlpEndpoint
		wantErr  bool
	}{
		{
			name:     "http root gets signal path",
			raw:      "http://localhost:4318",
			protocol: defaultExporterProtocol,
			signal:   signalTraces,
			want:     otlpEndpoint{target: "http://localhost:4318/v1/traces", insecure: true},
		},
		{
			name:     "https prefix keeps its path",
			raw:      "https://collector.example.com/otlp/",
			protocol: defaultExporterProtocol,
			signal:   signalMetrics,
			want:     otlpEndpoint{target: "https://collector.example.com/otlp/v1/metrics"},
		},
		{
			name:     "signal path already present",
			raw:      "https://collector.example.com/v1/metrics",
			protocol: defaultExporterProtocol,
			signal:   signalMetrics,
			want:     otlpEndpoint{target: "https://collector.example.com/v1/metrics"},
		},
		{
			name:     "query string preserved",
			raw:      "https://collector.example.com/otlp?token=abc",
			protocol: defaultExporterProtocol,
			signal:   signalTraces,
			want:     otlpEndpoint{target: "https://collector.example.com/otlp/v1/traces?token=abc"},
		},
		{
			name:     "http without scheme",
			raw:      "collector:4318",
			protocol: defaultExporterProtocol,
			signal:   signalTraces,
			wantErr:  true,
		},
		{
			name:     "grpc bare host port is plaintext",
			raw:      "collector:4317",
			protocol: protocolGRPC,
			want:     otlpEndpoint{target: "collector:4317", insecure: true},
		},
		{
			name:     "grpcs scheme is tls",
			raw:      "grpcs://collector.example.com:4317",
			protocol: protocolGRPC,
			want:     otlpEndpoint{target: "collector.example.com:4317"},
		},
		{
			name:     "grpc without port",
			raw:      "collector",
			protocol: protocolGRPC,
			wantErr:  true,
		},
		{
			name:     "grpc unknown scheme",
			raw:      "ftp://collector:4317",
			protocol: protocolGRPC,
			wantErr:  true,
		},
		{
			name:     "empty",
			raw:      "  ",
			protocol: defaultExporterProtocol,
			wantErr:  true,
		},
		{
			name:     "unknown protocol",
			raw:      "http://collector:4318",
			protocol: "thrift",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveEndpoint(tt.raw, tt.protocol, tt.signal)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
