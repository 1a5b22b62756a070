package observability

import (
	"fmt"
	"net/url"
	"strings"
)

// OTLP HTTP signal paths
const (
	signalTraces  = "/v1/traces"
	signalMetrics = "/v1/metrics"
)

// otlpEndpoint is a collector address ready to hand to an exporter. For
// http/protobuf target is a full URL ending in the signal path; for grpc it
// is host:port.
type otlpEndpoint struct {
	target   string
	insecure bool
}

// resolveEndpoint parses raw for protocol. signalPath is appended to HTTP
// endpoints that do not already end with it; query strings survive.
func resolveEndpoint(raw, protocol, signalPath string) (otlpEndpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return otlpEndpoint{}, fmt.Errorf("endpoint cannot be empty")
	}

	switch protocol {
	case defaultExporterProtocol:
		return resolveHTTPEndpoint(raw, signalPath)
	case protocolGRPC:
		return resolveGRPCEndpoint(raw)
	default:
		return otlpEndpoint{}, fmt.Errorf("unsupported OTLP exporter protocol %q", protocol)
	}
}

func resolveHTTPEndpoint(raw, signalPath string) (otlpEndpoint, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return otlpEndpoint{}, fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return otlpEndpoint{}, fmt.Errorf("endpoint must use http or https with http/protobuf, got %q", raw)
	}
	if parsed.Host == "" {
		return otlpEndpoint{}, fmt.Errorf("endpoint %q has no host", raw)
	}

	path := strings.TrimSuffix(parsed.Path, "/")
	if !strings.HasSuffix(path, signalPath) {
		path += signalPath
	}
	parsed.Path = path

	return otlpEndpoint{target: parsed.String(), insecure: parsed.Scheme == "http"}, nil
}

func resolveGRPCEndpoint(raw string) (otlpEndpoint, error) {
	if !strings.Contains(raw, "://") {
		if !strings.Contains(raw, ":") {
			return otlpEndpoint{}, fmt.Errorf("grpc endpoint %q must be host:port", raw)
		}
		// bare host:port means a plaintext collector
		return otlpEndpoint{target: raw, insecure: true}, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return otlpEndpoint{}, fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Host == "" {
		return otlpEndpoint{}, fmt.Errorf("endpoint %q has no host", raw)
	}

	switch parsed.Scheme {
	case "http", "grpc":
		return otlpEndpoint{target: parsed.Host, insecure: true}, nil
	case "https", "grpcs":
		return otlpEndpoint{target: parsed.Host}, nil
	default:
		return otlpEndpoint{}, fmt.Errorf("unsupported grpc endpoint scheme %q", parsed.Scheme)
	}
}
