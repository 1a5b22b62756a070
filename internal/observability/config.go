package observability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m5stack/m5doc/internal/types"
)

const (
	defaultServiceName      = "m5doc"
	defaultExporterProtocol = "http/protobuf"
	protocolGRPC            = "grpc"
	metricsExporterOTLP     = "otlp"
	metricsExporterProm     = "prometheus"
	metricsExporterNone     = "none"
	resourceServiceNameKey  = "service.name"
	defaultExportInterval   = 60 * time.Second
)

// Config is the OpenTelemetry slice of the application configuration
type Config struct {
	Enabled              bool
	ServiceName          string
	ExporterEndpoint     string
	ExporterProtocol     string
	ResourceAttributes   map[string]string
	TracesSampler        string
	TracesSamplerArg     float64
	MetricsExporter      string
	MetricExportInterval time.Duration
}

// LoadConfig extracts, normalises and validates the OTEL_* settings of cfg
func LoadConfig(cfg *types.Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: nil root configuration provided")
	}

	attrs, err := parseResourceAttributes(cfg.OTelResourceAttributes)
	if err != nil {
		return nil, fmt.Errorf("observability: OTEL_RESOURCE_ATTRIBUTES: %w", err)
	}

	c := &Config{
		Enabled:              cfg.OTelEnabled,
		ServiceName:          strings.TrimSpace(cfg.OTelServiceName),
		ExporterEndpoint:     strings.TrimSpace(cfg.OTelExporterOTLPEndpoint),
		ExporterProtocol:     strings.ToLower(strings.TrimSpace(cfg.OTelExporterOTLPProtocol)),
		ResourceAttributes:   attrs,
		TracesSampler:        strings.ToLower(strings.TrimSpace(cfg.OTelTracesSampler)),
		TracesSamplerArg:     cfg.OTelTracesSamplerArg,
		MetricsExporter:      strings.ToLower(strings.TrimSpace(cfg.OTelMetricsExporter)),
		MetricExportInterval: defaultExportInterval,
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.ExporterProtocol == "" {
		c.ExporterProtocol = defaultExporterProtocol
	}
	if c.TracesSampler == "" {
		c.TracesSampler = "always_on"
	}
	if c.MetricsExporter == "" {
		c.MetricsExporter = metricsExporterOTLP
	}
	if c.MetricExportInterval <= 0 {
		c.MetricExportInterval = defaultExportInterval
	}
	if c.ResourceAttributes == nil {
		c.ResourceAttributes = make(map[string]string)
	}
	if _, ok := c.ResourceAttributes[resourceServiceNameKey]; !ok {
		c.ResourceAttributes[resourceServiceNameKey] = c.ServiceName
	}
}

// Validate checks exporter settings. A disabled config is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("observability: config is nil")
	}
	if !c.Enabled {
		return nil
	}

	var errs []error

	switch c.MetricsExporter {
	case metricsExporterOTLP, metricsExporterProm, metricsExporterNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported metrics exporter %q", c.MetricsExporter))
	}

	if c.ExporterEndpoint == "" {
		errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT is required when OpenTelemetry is enabled"))
	} else if _, err := resolveEndpoint(c.ExporterEndpoint, c.ExporterProtocol, signalTraces); err != nil {
		errs = append(errs, fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT: %w", err))
	}

	switch c.TracesSampler {
	case "traceidratio", "parentbased_traceidratio":
		if c.TracesSamplerArg <= 0 || c.TracesSamplerArg > 1 {
			errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be in (0, 1] for %s, got %v", c.TracesSampler, c.TracesSamplerArg))
		}
	default:
		if c.TracesSamplerArg < 0 {
			errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG cannot be negative, got %v", c.TracesSamplerArg))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// parseResourceAttributes reads the k1=v1,k2=v2 form of OTEL_RESOURCE_ATTRIBUTES
func parseResourceAttributes(input string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid resource attribute %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("resource attribute key cannot be empty in %q", pair)
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}
