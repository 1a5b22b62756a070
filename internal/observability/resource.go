package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	resourceServiceNamespaceKey = "service.namespace"
	defaultServiceNamespace     = "m5stack"
)

// newResource describes this process to both providers. Configured
// attributes win over detected ones, except service.name which always
// follows ServiceName.
func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		attribute.String(resourceServiceNameKey, cfg.ServiceName),
	}
	if _, ok := cfg.ResourceAttributes[resourceServiceNamespaceKey]; !ok {
		attrs = append(attrs, attribute.String(resourceServiceNamespaceKey, defaultServiceNamespace))
	}
	for key, value := range cfg.ResourceAttributes {
		if strings.EqualFold(key, resourceServiceNameKey) {
			continue
		}
		attrs = append(attrs, attribute.String(key, value))
	}

	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attrs...),
	)
}
