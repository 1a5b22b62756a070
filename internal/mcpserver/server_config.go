package mcpserver

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/m5stack/m5doc/internal/types"
)

const maxHeaderBytesLimit = 10 << 20

// ServerConfig is the slice of the application config the MCP server uses
type ServerConfig struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration // zero keeps SSE streams open
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	GracefulShutdown bool
	ShutdownTimeout  time.Duration
	AccessLogging    bool

	IPAuthEnabled       bool
	AllowedIPs          []string
	IPAuthEnableLogging bool

	ToolPrefix string
}

// NewServerConfig extracts and validates the server settings of cfg. Every
// invalid field is reported.
func NewServerConfig(cfg *types.Config) (*ServerConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}

	sc := &ServerConfig{
		Host:                cfg.MCPServerHost,
		Port:                cfg.MCPServerPort,
		ReadTimeout:         cfg.MCPServerReadTimeout,
		WriteTimeout:        cfg.MCPServerWriteTimeout,
		IdleTimeout:         cfg.MCPServerIdleTimeout,
		MaxHeaderBytes:      cfg.MCPServerMaxHeaderBytes,
		GracefulShutdown:    cfg.MCPServerGracefulShutdown,
		ShutdownTimeout:     cfg.MCPServerShutdownTimeout,
		AccessLogging:       cfg.MCPServerEnableAccessLogging,
		IPAuthEnabled:       cfg.MCPIPAuthEnabled,
		AllowedIPs:          cfg.MCPAllowedIPs,
		IPAuthEnableLogging: cfg.MCPIPAuthEnableLogging,
		ToolPrefix:          cfg.MCPToolPrefix,
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid MCP server configuration: %w", err)
	}
	return sc, nil
}

// Validate checks the listener, timeout and authentication settings
func (sc *ServerConfig) Validate() error {
	var errs []error

	if sc.Host == "" {
		errs = append(errs, errors.New("MCP_SERVER_HOST cannot be empty"))
	}
	if sc.Port < 1 || sc.Port > 65535 {
		errs = append(errs, fmt.Errorf("MCP_SERVER_PORT must be between 1 and 65535, got %d", sc.Port))
	}

	for name, d := range map[string]time.Duration{
		"MCP_SERVER_READ_TIMEOUT":  sc.ReadTimeout,
		"MCP_SERVER_WRITE_TIMEOUT": sc.WriteTimeout,
		"MCP_SERVER_IDLE_TIMEOUT":  sc.IdleTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", name, d))
		}
	}
	if sc.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("MCP_SERVER_SHUTDOWN_TIMEOUT must be positive, got %v", sc.ShutdownTimeout))
	}
	if sc.MaxHeaderBytes <= 0 || sc.MaxHeaderBytes > maxHeaderBytesLimit {
		errs = append(errs, fmt.Errorf("MCP_SERVER_MAX_HEADER_BYTES must be in 1..%d, got %d", maxHeaderBytesLimit, sc.MaxHeaderBytes))
	}

	if sc.IPAuthEnabled {
		if len(sc.AllowedIPs) == 0 {
			errs = append(errs, errors.New("MCP_ALLOWED_IPS cannot be empty when IP authentication is enabled"))
		}
		for _, ip := range sc.AllowedIPs {
			if _, err := ParseCIDROrIP(ip); err != nil {
				errs = append(errs, fmt.Errorf("MCP_ALLOWED_IPS: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// Addr returns host:port
func (sc *ServerConfig) Addr() string {
	return net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
}
