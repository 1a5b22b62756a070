package knowledge

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	knowledgeMetricsOnce sync.Once
	legDegradedCounter   metric.Int64Counter
	backendFormatCounter metric.Int64Counter
)

func initKnowledgeMetrics() {
	knowledgeMetricsOnce.Do(func() {
		meter := otel.Meter("m5doc/knowledge")

		var err error
		legDegradedCounter, err = meter.Int64Counter(
			"m5doc.knowledge.legs.degraded",
			metric.WithDescription("Knowledge base legs that contributed no results because of a failure"),
		)
		if err != nil {
			zap.L().Warn("observability: failed to create leg degraded counter", zap.Error(err))
		}

		backendFormatCounter, err = meter.Int64Counter(
			"m5doc.knowledge.backend_format_errors",
			metric.WithDescription("Knowledge base responses that were not valid JSON objects"),
		)
		if err != nil {
			zap.L().Warn("observability: failed to create backend format error counter", zap.Error(err))
		}
	})
}

func recordLegDegraded(ctx context.Context, leg Leg, reason string) {
	initKnowledgeMetrics()
	if legDegradedCounter != nil {
		legDegradedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("knowledge.leg", string(leg)),
			attribute.String("knowledge.reason", reason),
		))
	}
}

func recordBackendFormatError(ctx context.Context) {
	initKnowledgeMetrics()
	if backendFormatCounter != nil {
		backendFormatCounter.Add(ctx, 1)
	}
}
