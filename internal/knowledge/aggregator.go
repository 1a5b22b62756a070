package knowledge

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m5stack/m5doc/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fixed answer texts
const (
	Preamble   = "请忽略以下参考资料的语种信息。以下是参考资料：\n"
	ChipHeader = "以下是芯片数据手册匹配到的信息：\n"
	Separator  = "---\n"
	Trailer    = "请忽略以上参考资料的语种信息。回复用户问题时需要首先判断用户的语种，以相同语种进行回复。"
)

var knowledgeTracer = otel.Tracer("m5doc/knowledge")

// SearchClient executes one backend search and returns the raw response body.
// Errors are transport failures; backend-reported failures arrive in the body.
type SearchClient interface {
	Search(ctx context.Context, req SearchRequest) ([]byte, error)
}

// Aggregator runs the legs of a plan and merges them into one answer
type Aggregator struct {
	client SearchClient
	logger *zap.Logger
}

// NewAggregator creates an aggregator backed by client
func NewAggregator(client SearchClient, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{client: client, logger: log.Named("aggregator")}
}

type legResult struct {
	text     string
	snippets int
	degraded *LegDegradedError
}

// Aggregate executes every leg of plan concurrently and formats the answer.
// Legs that fail in transport, report a non-zero code or carry undecodable
// data contribute nothing. A malformed top-level response fails the call.
func (a *Aggregator) Aggregate(ctx context.Context, plan *Plan) (string, error) {
	ctx, span := knowledgeTracer.Start(ctx, "knowledge.aggregate")
	defer span.End()

	if plan == nil || len(plan.Requests) == 0 {
		err := errors.New("plan has no requests")
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty_plan")
		return "", err
	}

	log := logger.FromContext(ctx, a.logger)

	span.SetAttributes(
		attribute.Int("knowledge.legs", len(plan.Requests)),
		attribute.Bool("knowledge.chip_leg", plan.HasChipLeg()),
	)

	results := make([]legResult, len(plan.Requests))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, req := range plan.Requests {
		group.Go(func() error {
			result, err := a.runLeg(groupCtx, log, req)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend_format_error")
		recordBackendFormatError(ctx)
		return "", err
	}

	var b strings.Builder
	b.WriteString(Preamble)
	total := 0
	for i, req := range plan.Requests {
		if req.Leg == LegChip {
			b.WriteString(ChipHeader)
		}
		b.WriteString(results[i].text)
		total += results[i].snippets
	}
	b.WriteString(Trailer)

	span.SetAttributes(attribute.Int("knowledge.snippets", total))
	span.SetStatus(codes.Ok, "aggregate_completed")
	return strings.TrimSpace(b.String()), nil
}

func (a *Aggregator) runLeg(ctx context.Context, log *zap.Logger, req SearchRequest) (legResult, error) {
	ctx, span := knowledgeTracer.Start(ctx, "knowledge.leg")
	defer span.End()

	span.SetAttributes(
		attribute.String("knowledge.leg", string(req.Leg)),
		attribute.Int("knowledge.limit", req.Limit),
		attribute.String("knowledge.filter", req.Filter.String()),
	)
	fields := []zap.Field{
		zap.String("leg", string(req.Leg)),
		zap.Int("limit", req.Limit),
		zap.Stringer("filter", req.Filter),
	}

	start := time.Now()
	body, err := a.client.Search(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		degraded := &LegDegradedError{Leg: req.Leg, Reason: ReasonTransport, Err: err}
		a.degrade(ctx, log, span, degraded, fields)
		return legResult{degraded: degraded}, nil
	}

	if ce := log.Check(zap.DebugLevel, "knowledge base raw response"); ce != nil {
		ce.Write(append(fields,
			zap.String("body", logger.Truncate(string(body), snippetLimit)),
			zap.Duration("elapsed", elapsed),
		)...)
	}

	resp, err := ParseResponse(req.Leg, body)
	if err != nil {
		log.Error("knowledge base returned malformed response", append(fields, zap.Error(err))...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend_format_error")
		return legResult{}, err
	}

	data, err := resp.Results(req.Leg)
	if err != nil {
		var degraded *LegDegradedError
		if !errors.As(err, &degraded) {
			degraded = &LegDegradedError{Leg: req.Leg, Reason: ReasonInvalidData, Err: err}
		}
		a.degrade(ctx, log, span, degraded, fields)
		return legResult{degraded: degraded}, nil
	}

	text := FormatSnippets(data)
	span.SetAttributes(attribute.Int("knowledge.snippets", len(data.ResultList)))
	log.Debug("knowledge leg completed", append(fields,
		zap.Int("snippets", len(data.ResultList)),
		zap.Duration("elapsed", elapsed),
	)...)

	return legResult{text: text, snippets: len(data.ResultList)}, nil
}

func (a *Aggregator) degrade(ctx context.Context, log *zap.Logger, span trace.Span, degraded *LegDegradedError, fields []zap.Field) {
	log.Warn("knowledge leg degraded", append(fields,
		zap.String("reason", degraded.Reason),
		zap.Error(degraded.Err),
	)...)
	span.RecordError(degraded)
	span.SetAttributes(attribute.String("knowledge.degraded_reason", degraded.Reason))
	recordLegDegraded(ctx, degraded.Leg, degraded.Reason)
}
