package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/m5stack/m5doc/internal/mcpserver"
	"github.com/m5stack/m5doc/internal/metrics"
	"github.com/m5stack/m5doc/internal/observability"
)

var (
	serveHost         string
	servePort         int
	serveAllowedIPs   []string
	serveEnableIPAuth bool
	serveEnableAccess bool
	serveToolPrefix   string
	serveLogLevel     string
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"mcp-server"},
	Short:   "Start the MCP server exposing knowledge_search",
	Long: `
Start an MCP server that exposes the M5Stack knowledge base as the
"knowledge_search" tool. Clients connect over SSE (/sse with /messages)
or streamable HTTP (/mcp or /).

Configuration is loaded from environment variables, optionally filled from a
YAML credentials file (see --config).

Examples:
  m5doc serve                                  # Listen on 0.0.0.0:5058
  m5doc serve --port 9000                      # Use custom port
  m5doc serve --enable-ip-auth --allowed-ips "192.168.1.0/24"
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Server host address")
	serveCmd.Flags().IntVar(&servePort, "port", 5058, "Server port")
	serveCmd.Flags().StringSliceVar(&serveAllowedIPs, "allowed-ips", []string{"127.0.0.1", "::1"}, "Comma-separated list of allowed IP addresses/ranges")
	serveCmd.Flags().BoolVar(&serveEnableIPAuth, "enable-ip-auth", false, "Enable IP-based authentication")
	serveCmd.Flags().BoolVar(&serveEnableAccess, "enable-access-log", true, "Enable HTTP access logging")
	serveCmd.Flags().StringVar(&serveToolPrefix, "tool-prefix", "", "Prefix prepended to the advertised tool name")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level override: debug, info, warn, error")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override configuration with command line flags if provided
	if cmd.Flags().Changed("host") {
		cfg.MCPServerHost = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.MCPServerPort = servePort
	}
	if cmd.Flags().Changed("allowed-ips") {
		cfg.MCPAllowedIPs = serveAllowedIPs
	}
	if cmd.Flags().Changed("enable-ip-auth") {
		cfg.MCPIPAuthEnabled = serveEnableIPAuth
	}
	if cmd.Flags().Changed("enable-access-log") {
		cfg.MCPServerEnableAccessLogging = serveEnableAccess
	}
	if cmd.Flags().Changed("tool-prefix") {
		cfg.MCPToolPrefix = serveToolPrefix
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = serveLogLevel
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	telemetry, err := observability.Init(cfg)
	if err != nil {
		log.Warn("OpenTelemetry initialization failed, continuing without exporters", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			log.Warn("OpenTelemetry shutdown failed", zap.Error(err))
		}
	}()

	service, err := newKnowledgeService(cfg, log)
	if err != nil {
		return err
	}

	server, err := mcpserver.NewServerWrapper(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server wrapper: %w", err)
	}
	if telemetry.MetricsHandler != nil {
		server.SetMetricsHandler(telemetry.MetricsHandler)
	}

	store, recorder := openUsageRecorder(cfg, log)
	if store != nil {
		defer func() { _ = store.Close() }()
		if registration, err := metrics.RegisterInvocationGauge(store); err != nil {
			log.Warn("invocation gauge unavailable", zap.Error(err))
		} else {
			defer func() { _ = registration.Unregister() }()
		}
	}
	server.SetInvocationRecorder(recorder)

	if err := server.RegisterKnowledgeSearch(service); err != nil {
		return fmt.Errorf("failed to register knowledge search tool: %w", err)
	}

	if cfg.MCPIPAuthEnabled {
		log.Info("IP authentication enabled", zap.Strings("allowed_ips", cfg.MCPAllowedIPs))
	} else {
		log.Warn("no authentication middleware enabled")
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("received shutdown signal, stopping server")

	if err := server.Stop(); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}
