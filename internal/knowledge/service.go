package knowledge

import (
	"context"
	"strings"

	"github.com/m5stack/m5doc/internal/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Query holds the knowledge_search arguments after decoding
type Query struct {
	Text          string
	EntityCount   int
	NeedsChipDocs bool
	FilterType    string
}

// Answer is the JSON envelope used by the search command
type Answer struct {
	Info string `json:"info"`
}

// Service plans and aggregates knowledge base searches
type Service struct {
	aggregator *Aggregator
	logger     *zap.Logger
}

// NewService creates a service that searches through client
func NewService(client SearchClient, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		aggregator: NewAggregator(client, log),
		logger:     log.Named("knowledge"),
	}
}

// Retrieve answers q with matched knowledge base snippets. A blank query
// returns ErrMissingQuery without contacting the backend. Otherwise the
// query text reaches the backend unchanged apart from trimming.
func (s *Service) Retrieve(ctx context.Context, q Query) (string, error) {
	ctx, span := knowledgeTracer.Start(ctx, "knowledge.retrieve")
	defer span.End()

	if IsBlankQuery(q.Text) {
		span.SetStatus(codes.Error, "missing_query")
		return "", ErrMissingQuery
	}

	text := strings.TrimSpace(q.Text)
	plan := NewPlan(text, q.EntityCount, q.NeedsChipDocs, q.FilterType)
	primary := plan.Primary()

	span.SetAttributes(
		attribute.String("knowledge.query", logger.Truncate(text, 256)),
		attribute.Int("knowledge.entity_count", q.EntityCount),
		attribute.Bool("knowledge.is_chip", q.NeedsChipDocs),
		attribute.String("knowledge.filter_type", q.FilterType),
		attribute.Int("knowledge.primary_limit", primary.Limit),
	)

	logger.FromContext(ctx, s.logger).Info("knowledge search planned",
		zap.String("query", text),
		zap.Int("limit", primary.Limit),
		zap.String("filter_type", q.FilterType),
		zap.Bool("is_chip", q.NeedsChipDocs),
		zap.Int("legs", len(plan.Requests)),
	)

	answer, err := s.aggregator.Aggregate(ctx, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate_failed")
		return "", err
	}

	span.SetStatus(codes.Ok, "retrieve_completed")
	return answer, nil
}
