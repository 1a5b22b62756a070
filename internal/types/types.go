package types

import (
	"fmt"
	"time"
)

// Config represents the m5doc configuration
type Config struct {
	// Volcengine credentials used to sign knowledge base requests
	VolcAccessKey string `json:"-" env:"VOLC_ACCESS_KEY,required=true"`
	VolcSecretKey string `json:"-" env:"VOLC_SECRET_KEY,required=true"`
	VolcRegion    string `json:"volc_region" env:"VOLC_REGION,default=cn-north-1"`
	VolcService   string `json:"volc_service" env:"VOLC_SERVICE,default=air"`

	// Knowledge base configuration
	KnowledgeBaseDomain         string        `json:"knowledge_base_domain" env:"KNOWLEDGE_BASE_DOMAIN,default=api-knowledgebase.mlp.cn-beijing.volces.com"`
	KnowledgeBaseScheme         string        `json:"knowledge_base_scheme" env:"KNOWLEDGE_BASE_SCHEME,default=http"`
	KnowledgeBaseName           string        `json:"knowledge_base_name" env:"KNOWLEDGE_BASE_NAME,required=true"`
	KnowledgeBaseProject        string        `json:"knowledge_base_project" env:"KNOWLEDGE_BASE_PROJECT,default=default"`
	KnowledgeBaseRequestTimeout time.Duration `json:"knowledge_base_request_timeout" env:"KNOWLEDGE_BASE_REQUEST_TIMEOUT,default=10s"`
	KnowledgeBaseRateLimit      float64       `json:"knowledge_base_rate_limit" env:"KNOWLEDGE_BASE_RATE_LIMIT,default=20.0"`
	KnowledgeBaseRateBurst      int           `json:"knowledge_base_rate_burst" env:"KNOWLEDGE_BASE_RATE_BURST,default=40"`
	KnowledgeBaseRerankModel    string        `json:"knowledge_base_rerank_model" env:"KNOWLEDGE_BASE_RERANK_MODEL,default=doubao-seed-rerank"`

	// MCP Server configuration
	MCPServerHost                string        `json:"mcp_server_host" env:"MCP_SERVER_HOST,default=0.0.0.0"`
	MCPServerPort                int           `json:"mcp_server_port" env:"MCP_SERVER_PORT,default=5058"`
	MCPServerReadTimeout         time.Duration `json:"mcp_server_read_timeout" env:"MCP_SERVER_READ_TIMEOUT,default=30s"`
	MCPServerWriteTimeout        time.Duration `json:"mcp_server_write_timeout" env:"MCP_SERVER_WRITE_TIMEOUT,default=0s"`
	MCPServerIdleTimeout         time.Duration `json:"mcp_server_idle_timeout" env:"MCP_SERVER_IDLE_TIMEOUT,default=120s"`
	MCPServerShutdownTimeout     time.Duration `json:"mcp_server_shutdown_timeout" env:"MCP_SERVER_SHUTDOWN_TIMEOUT,default=30s"`
	MCPServerMaxHeaderBytes      int           `json:"mcp_server_max_header_bytes" env:"MCP_SERVER_MAX_HEADER_BYTES,default=1048576"`
	MCPServerGracefulShutdown    bool          `json:"mcp_server_graceful_shutdown" env:"MCP_SERVER_GRACEFUL_SHUTDOWN,default=true"`
	MCPServerEnableAccessLogging bool          `json:"mcp_server_enable_access_logging" env:"MCP_SERVER_ENABLE_ACCESS_LOGGING,default=true"`
	MCPIPAuthEnabled             bool          `json:"mcp_ip_auth_enabled" env:"MCP_IP_AUTH_ENABLED,default=false"`
	MCPAllowedIPsStr             string        `json:"-" env:"MCP_ALLOWED_IPS"`
	MCPAllowedIPs                []string      `json:"mcp_allowed_ips"`
	MCPIPAuthEnableLogging       bool          `json:"mcp_ip_auth_enable_logging" env:"MCP_IP_AUTH_ENABLE_LOGGING,default=false"`
	MCPToolPrefix                string        `json:"mcp_tool_prefix" env:"MCP_TOOL_PREFIX"`

	// Usage statistics
	UsageStatsEnabled bool   `json:"usage_stats_enabled" env:"USAGE_STATS_ENABLED,default=true"`
	UsageStatsPath    string `json:"usage_stats_path" env:"USAGE_STATS_PATH"`

	// Logging configuration
	LogEnv   string `json:"log_env" env:"LOG_ENV,default=prod"`
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// OpenTelemetry configuration
	OTelEnabled              bool    `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string  `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=m5doc"`
	OTelResourceAttributes   string  `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelExporterOTLPEndpoint string  `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string  `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelMetricsExporter      string  `json:"otel_metrics_exporter" env:"OTEL_METRICS_EXPORTER,default=otlp"`
	OTelTracesSampler        string  `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64 `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
}

// KnowledgeBaseURL returns the base URL of the knowledge base endpoint
func (c *Config) KnowledgeBaseURL() string {
	return fmt.Sprintf("%s://%s", c.KnowledgeBaseScheme, c.KnowledgeBaseDomain)
}

// ServerAddress returns the listen address of the MCP server
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.MCPServerHost, c.MCPServerPort)
}
