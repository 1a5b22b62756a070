package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/m5stack/m5doc/internal/types"
	env "github.com/netflix/go-env"
)

// Type alias for Config
type Config = types.Config

// FileEnv names the environment variable pointing at an optional credentials file
const FileEnv = "M5DOC_CONFIG_FILE"

var defaultAllowedIPs = []string{"127.0.0.1", "::1"}

// Load loads configuration from environment variables, filling unset
// variables from the file named by M5DOC_CONFIG_FILE when present
func Load() (*Config, error) {
	return LoadWithFile(os.Getenv(FileEnv))
}

// LoadWithFile loads configuration from environment variables after applying
// the credentials file at path. An empty path skips the file.
func LoadWithFile(path string) (*Config, error) {
	if path != "" {
		if err := ApplyFile(path); err != nil {
			return nil, err
		}
	}

	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	config.MCPAllowedIPs = parseAllowedIPs(config.MCPAllowedIPsStr)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// UsageStats holds the settings needed to read the local search counters
type UsageStats struct {
	Enabled bool   `env:"USAGE_STATS_ENABLED,default=true"`
	Path    string `env:"USAGE_STATS_PATH"`
}

// LoadUsageStats reads only the usage statistics settings, so callers that
// never reach the knowledge base work without its credentials. An empty
// path skips the credentials file.
func LoadUsageStats(path string) (*UsageStats, error) {
	if path != "" {
		if err := ApplyFile(path); err != nil {
			return nil, err
		}
	}

	var stats UsageStats
	if _, err := env.UnmarshalFromEnviron(&stats); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	return &stats, nil
}

// parseAllowedIPs splits a comma-separated list, falling back to loopback
func parseAllowedIPs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), defaultAllowedIPs...)
	}

	parts := strings.Split(raw, ",")
	ips := make([]string, 0, len(parts))
	for _, ip := range parts {
		if trimmed := strings.TrimSpace(ip); trimmed != "" {
			ips = append(ips, trimmed)
		}
	}
	return ips
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	if err := validateKnowledgeBaseConfig(config); err != nil {
		return fmt.Errorf("knowledge base configuration validation failed: %w", err)
	}

	if err := validateMCPConfig(config); err != nil {
		return fmt.Errorf("MCP server configuration validation failed: %w", err)
	}

	switch config.LogEnv {
	case "prod", "production", "dev", "development", "local":
	default:
		return fmt.Errorf("LOG_ENV must be one of prod, dev or local, got: %s", config.LogEnv)
	}

	if config.OTelEnabled {
		switch config.OTelMetricsExporter {
		case "otlp", "prometheus", "none":
		default:
			return fmt.Errorf("OTEL_METRICS_EXPORTER must be otlp, prometheus or none, got: %s", config.OTelMetricsExporter)
		}
	}

	return nil
}

func validateKnowledgeBaseConfig(config *Config) error {
	if strings.TrimSpace(config.VolcAccessKey) == "" {
		return fmt.Errorf("VOLC_ACCESS_KEY is required")
	}
	if strings.TrimSpace(config.VolcSecretKey) == "" {
		return fmt.Errorf("VOLC_SECRET_KEY is required")
	}
	if strings.TrimSpace(config.KnowledgeBaseName) == "" {
		return fmt.Errorf("KNOWLEDGE_BASE_NAME is required")
	}
	if !isValidHostname(config.KnowledgeBaseDomain) {
		return fmt.Errorf("KNOWLEDGE_BASE_DOMAIN must be a valid hostname, got: %q", config.KnowledgeBaseDomain)
	}

	switch config.KnowledgeBaseScheme {
	case "http", "https":
	default:
		return fmt.Errorf("KNOWLEDGE_BASE_SCHEME must be http or https, got: %s", config.KnowledgeBaseScheme)
	}

	if config.VolcRegion == "" {
		return fmt.Errorf("VOLC_REGION cannot be empty")
	}
	if config.VolcService == "" {
		return fmt.Errorf("VOLC_SERVICE cannot be empty")
	}

	if config.KnowledgeBaseRequestTimeout <= 0 {
		return fmt.Errorf("KNOWLEDGE_BASE_REQUEST_TIMEOUT must be positive, got: %v", config.KnowledgeBaseRequestTimeout)
	}

	// Rate limiting disabled when the limit is zero
	if config.KnowledgeBaseRateLimit < 0 {
		return fmt.Errorf("KNOWLEDGE_BASE_RATE_LIMIT cannot be negative, got: %f", config.KnowledgeBaseRateLimit)
	}
	if config.KnowledgeBaseRateLimit > 0 && config.KnowledgeBaseRateBurst < 1 {
		config.KnowledgeBaseRateBurst = 1
	}

	if config.KnowledgeBaseRerankModel == "" {
		return fmt.Errorf("KNOWLEDGE_BASE_RERANK_MODEL cannot be empty")
	}

	return nil
}

// validateMCPConfig validates MCP server configuration
func validateMCPConfig(config *Config) error {
	if config.MCPServerPort < 1 || config.MCPServerPort > 65535 {
		return fmt.Errorf("MCP_SERVER_PORT must be between 1 and 65535, got: %d", config.MCPServerPort)
	}

	if config.MCPServerHost == "" {
		return fmt.Errorf("MCP_SERVER_HOST cannot be empty")
	}
	if net.ParseIP(config.MCPServerHost) == nil && !isValidHostname(config.MCPServerHost) {
		return fmt.Errorf("MCP_SERVER_HOST must be a valid IP address or hostname, got: %s", config.MCPServerHost)
	}

	if config.MCPServerReadTimeout < 0 || config.MCPServerWriteTimeout < 0 || config.MCPServerIdleTimeout < 0 {
		return fmt.Errorf("MCP server timeouts cannot be negative")
	}
	if config.MCPServerShutdownTimeout <= 0 {
		return fmt.Errorf("MCP_SERVER_SHUTDOWN_TIMEOUT must be positive, got: %v", config.MCPServerShutdownTimeout)
	}

	const maxHeaderBytesLimit = 10 << 20
	if config.MCPServerMaxHeaderBytes <= 0 || config.MCPServerMaxHeaderBytes > maxHeaderBytesLimit {
		return fmt.Errorf("MCP_SERVER_MAX_HEADER_BYTES must be between 1 and %d, got: %d", maxHeaderBytesLimit, config.MCPServerMaxHeaderBytes)
	}

	if config.MCPIPAuthEnabled {
		if len(config.MCPAllowedIPs) == 0 {
			return fmt.Errorf("MCP_ALLOWED_IPS cannot be empty when IP authentication is enabled")
		}
		for i, ip := range config.MCPAllowedIPs {
			if !isValidIPOrCIDR(ip) {
				return fmt.Errorf("invalid IP address in MCP_ALLOWED_IPS at index %d: %s", i, ip)
			}
		}
	}

	if config.MCPToolPrefix != "" && !isValidToolPrefix(config.MCPToolPrefix) {
		return fmt.Errorf("MCP_TOOL_PREFIX contains invalid characters: %s", config.MCPToolPrefix)
	}

	return nil
}

func isValidIPOrCIDR(value string) bool {
	if strings.Contains(value, "/") {
		_, _, err := net.ParseCIDR(value)
		return err == nil
	}
	return net.ParseIP(value) != nil
}

// isValidHostname checks if a string is a valid hostname
func isValidHostname(hostname string) bool {
	if len(hostname) == 0 || len(hostname) > 253 {
		return false
	}

	for _, char := range hostname {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '-' || char == '.') {
			return false
		}
	}

	// Cannot start or end with hyphen
	if strings.HasPrefix(hostname, "-") || strings.HasSuffix(hostname, "-") {
		return false
	}

	return true
}

// isValidToolPrefix allows the characters MCP clients accept in tool names
func isValidToolPrefix(prefix string) bool {
	if len(prefix) > 64 {
		return false
	}
	for _, char := range prefix {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '_' || char == '-' || char == '.') {
			return false
		}
	}
	return true
}
