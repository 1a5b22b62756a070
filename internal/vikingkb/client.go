package vikingkb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/m5stack/m5doc/internal/knowledge"
	"github.com/m5stack/m5doc/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 16 << 20

var clientTracer = otel.Tracer("m5doc/vikingkb")

// Client calls the Volcengine knowledge base search API
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	signer      Signer
	config      *Config
	logger      *zap.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is left untouched.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithSigner replaces the Volcengine signer
func WithSigner(signer Signer) Option {
	return func(c *Client) {
		c.signer = signer
	}
}

// WithLogger sets the client logger
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log.Named("vikingkb")
		}
	}
}

func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid knowledge base config: %w", err)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		config:     cfg,
		logger:     zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		client.rateLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.signer == nil {
		if cfg.AccessKey == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("access key and secret key are required")
		}
		client.signer = NewVolcSigner(cfg)
	}

	return client, nil
}

// Search runs one knowledge search and returns the raw response body. Non-2xx
// responses still return their body since the API reports failures in it.
func (c *Client) Search(ctx context.Context, req knowledge.SearchRequest) ([]byte, error) {
	ctx, span := clientTracer.Start(ctx, "vikingkb.search")
	defer span.End()

	span.SetAttributes(
		attribute.String("vikingkb.leg", string(req.Leg)),
		attribute.String("vikingkb.collection", c.config.Name),
		attribute.Int("vikingkb.limit", req.Limit),
	)

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			terr := &TransportError{Op: "rate limit wait", Err: err}
			span.RecordError(terr)
			span.SetStatus(codes.Error, "rate_limited")
			return nil, terr
		}
	}

	payload, err := json.Marshal(NewSearchBody(c.config, req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL()+SearchPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Host = c.config.Domain
	httpReq = c.signer.Sign(httpReq)

	log := logger.FromContext(ctx, c.logger)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		terr := &TransportError{Op: "search", Err: err}
		span.RecordError(terr)
		span.SetStatus(codes.Error, "transport_error")
		log.Warn("knowledge base request failed",
			zap.String("leg", string(req.Leg)),
			zap.Bool("timeout", IsTimeout(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, terr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		terr := &TransportError{Op: "read response", Err: err}
		span.RecordError(terr)
		span.SetStatus(codes.Error, "read_error")
		return nil, terr
	}

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("vikingkb.response_bytes", len(body)),
	)
	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn("knowledge base returned error status",
			zap.String("leg", string(req.Leg)),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logger.Truncate(string(body), 200)),
		)
	}

	log.Debug("knowledge base request completed",
		zap.String("leg", string(req.Leg)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	span.SetStatus(codes.Ok, "search_completed")
	return body, nil
}
