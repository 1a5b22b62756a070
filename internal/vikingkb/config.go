package vikingkb

import (
	"fmt"
	"time"

	"github.com/m5stack/m5doc/internal/types"
)

const (
	defaultScheme      = "http"
	defaultProject     = "default"
	defaultRegion      = "cn-north-1"
	defaultService     = "air"
	defaultRerankModel = "doubao-seed-rerank"
	defaultTimeout     = 10 * time.Second
)

// Config holds the knowledge base connection settings
type Config struct {
	Scheme         string
	Domain         string
	Project        string
	Name           string
	AccessKey      string
	SecretKey      string
	Region         string
	Service        string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	RerankModel    string
}

func NewConfigFromTypes(cfg *types.Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return &Config{
		Scheme:         cfg.KnowledgeBaseScheme,
		Domain:         cfg.KnowledgeBaseDomain,
		Project:        cfg.KnowledgeBaseProject,
		Name:           cfg.KnowledgeBaseName,
		AccessKey:      cfg.VolcAccessKey,
		SecretKey:      cfg.VolcSecretKey,
		Region:         cfg.VolcRegion,
		Service:        cfg.VolcService,
		RequestTimeout: cfg.KnowledgeBaseRequestTimeout,
		RateLimit:      cfg.KnowledgeBaseRateLimit,
		RateBurst:      cfg.KnowledgeBaseRateBurst,
		RerankModel:    cfg.KnowledgeBaseRerankModel,
	}, nil
}

func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("knowledge base domain is required")
	}
	if c.Name == "" {
		return fmt.Errorf("knowledge base name is required")
	}

	if c.Scheme == "" {
		c.Scheme = defaultScheme
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", c.Scheme)
	}
	if c.Project == "" {
		c.Project = defaultProject
	}
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if c.Service == "" {
		c.Service = defaultService
	}
	if c.RerankModel == "" {
		c.RerankModel = defaultRerankModel
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultTimeout
	}
	if c.RequestTimeout > 300*time.Second {
		c.RequestTimeout = 300 * time.Second
	}

	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.RateLimit > 1000 {
		c.RateLimit = 1000.0
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}

	return nil
}

// BaseURL returns scheme://domain
func (c *Config) BaseURL() string {
	return c.Scheme + "://" + c.Domain
}
