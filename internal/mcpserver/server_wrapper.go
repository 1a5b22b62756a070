package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/m5stack/m5doc/internal/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Server identity advertised during MCP initialization
const (
	ServerName    = "m5-doc-server"
	ServerVersion = "0.1.0"
)

// HTTP routes served by the wrapper
const (
	PathMCP      = "/mcp"
	PathSSE      = "/sse"
	PathMessages = "/messages"
	PathHealth   = "/health"
	PathMetrics  = "/metrics"
)

// ServerWrapper hosts the MCP SDK server over HTTP
type ServerWrapper struct {
	sdkServer  *mcp.Server
	httpServer *http.Server
	listener   net.Listener

	serverConfig *ServerConfig

	toolAdapter      *ToolRegistryAdapter
	ipAuthMiddleware *IPAuthMiddleware
	metricsHandler   http.Handler
	recorder         InvocationRecorder

	logger       *zap.Logger
	startedAt    time.Time
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	mutex        sync.RWMutex
	isRunning    bool
}

// NewServerWrapper creates a server for config. IP authentication is
// installed when enabled in config.
func NewServerWrapper(config *types.Config, log *zap.Logger) (*ServerWrapper, error) {
	if config == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mcpserver")

	serverConfig, err := NewServerConfig(config)
	if err != nil {
		return nil, err
	}

	impl := &mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}
	sdkServer := mcp.NewServer(impl, nil)

	wrapper := &ServerWrapper{
		sdkServer:    sdkServer,
		serverConfig: serverConfig,
		toolAdapter:  NewToolRegistryAdapter(sdkServer, log),
		logger:       log,
		shutdownChan: make(chan struct{}),
	}

	if serverConfig.IPAuthEnabled {
		middleware, err := NewIPAuthMiddleware(serverConfig.AllowedIPs, serverConfig.IPAuthEnableLogging, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create IP auth middleware: %w", err)
		}
		wrapper.ipAuthMiddleware = middleware
	}

	log.Info("MCP server initialized",
		zap.String("name", impl.Name),
		zap.String("version", impl.Version),
		zap.Bool("ip_auth", serverConfig.IPAuthEnabled),
	)
	return wrapper, nil
}

// SetIPAuthMiddleware replaces the IP authentication middleware
func (sw *ServerWrapper) SetIPAuthMiddleware(middleware *IPAuthMiddleware) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	sw.ipAuthMiddleware = middleware
}

// SetMetricsHandler exposes handler on /metrics
func (sw *ServerWrapper) SetMetricsHandler(handler http.Handler) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	sw.metricsHandler = handler
}

// SetInvocationRecorder counts knowledge_search calls registered afterwards
func (sw *ServerWrapper) SetInvocationRecorder(recorder InvocationRecorder) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	sw.recorder = recorder
}

// RegisterTool registers a tool with the SDK server
func (sw *ServerWrapper) RegisterTool(definition ToolDefinition, handler ToolHandler) error {
	return sw.toolAdapter.RegisterTool(definition, handler)
}

// RegisterKnowledgeSearch registers the knowledge_search tool backed by
// retriever, applying the configured tool prefix
func (sw *ServerWrapper) RegisterKnowledgeSearch(retriever Retriever) error {
	if retriever == nil {
		return fmt.Errorf("retriever cannot be nil")
	}
	tool := NewKnowledgeSearchTool(retriever, sw.serverConfig.ToolPrefix, sw.logger)
	sw.mutex.RLock()
	if sw.recorder != nil {
		tool.SetRecorder(sw.recorder)
	}
	sw.mutex.RUnlock()
	return sw.toolAdapter.RegisterToolWithConfig(KnowledgeSearchToolName, tool.Name(), tool.GetToolDefinition(), tool.HandleToolCall)
}

// ToolNames returns the advertised tool names
func (sw *ServerWrapper) ToolNames() []string {
	return sw.toolAdapter.GetRegisteredToolNames()
}

// Handler builds the HTTP handler chain
func (sw *ServerWrapper) Handler() http.Handler {
	sw.mutex.RLock()
	defer sw.mutex.RUnlock()

	getServer := func(r *http.Request) *mcp.Server { return sw.sdkServer }

	// /sse and /messages share one handler so posted messages find the
	// session opened by the event stream
	sseHandler := mcp.NewSSEHandler(getServer, nil)

	mux := http.NewServeMux()
	mux.Handle("/", mcp.NewStreamableHTTPHandler(getServer, nil))
	mux.Handle(PathMCP, NewDualTransportHandler(getServer, sseHandler))
	mux.Handle(PathSSE, sseHandler)
	mux.Handle(PathMessages, sseHandler)
	mux.HandleFunc(PathHealth, sw.handleHealthCheck)
	if sw.metricsHandler != nil {
		mux.Handle(PathMetrics, sw.metricsHandler)
	}

	var handler http.Handler = mux
	if sw.ipAuthMiddleware != nil {
		handler = sw.ipAuthMiddleware.Middleware(handler)
	}
	if sw.serverConfig.AccessLogging {
		handler = sw.loggingMiddleware(handler)
	}
	return handler
}

// Start binds the listen address and serves in the background
func (sw *ServerWrapper) Start() error {
	sw.mutex.Lock()
	if sw.isRunning {
		sw.mutex.Unlock()
		return fmt.Errorf("server is already running")
	}
	if sw.httpServer != nil {
		sw.mutex.Unlock()
		return fmt.Errorf("server cannot be restarted after stop")
	}
	sw.mutex.Unlock()

	handler := sw.Handler()
	serverAddr := sw.serverConfig.Addr()

	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", serverAddr, err)
	}

	server := &http.Server{
		Handler:        handler,
		ReadTimeout:    sw.serverConfig.ReadTimeout,
		WriteTimeout:   sw.serverConfig.WriteTimeout,
		IdleTimeout:    sw.serverConfig.IdleTimeout,
		MaxHeaderBytes: sw.serverConfig.MaxHeaderBytes,
	}

	sw.mutex.Lock()
	sw.httpServer = server
	sw.listener = listener
	sw.startedAt = time.Now()
	sw.isRunning = true
	sw.mutex.Unlock()

	sw.wg.Add(1)
	go func() {
		defer sw.wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sw.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	sw.logger.Info("MCP server started",
		zap.String("address", listener.Addr().String()),
		zap.Strings("tools", sw.ToolNames()),
		zap.Strings("paths", []string{PathMCP, PathSSE, PathMessages, PathHealth}),
	)
	return nil
}

// Stop shuts the HTTP server down, gracefully when configured
func (sw *ServerWrapper) Stop() error {
	sw.mutex.Lock()
	if !sw.isRunning {
		sw.mutex.Unlock()
		return fmt.Errorf("server is not running")
	}
	server := sw.httpServer
	sw.isRunning = false
	sw.mutex.Unlock()

	sw.logger.Info("stopping MCP server")

	var stopErr error
	if sw.serverConfig.GracefulShutdown {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sw.serverConfig.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			sw.logger.Warn("graceful shutdown failed, forcing close", zap.Error(err))
			if err := server.Close(); err != nil {
				stopErr = fmt.Errorf("failed to close HTTP server: %w", err)
			}
		}
	} else if err := server.Close(); err != nil {
		stopErr = fmt.Errorf("failed to close HTTP server: %w", err)
	}

	sw.wg.Wait()
	close(sw.shutdownChan)

	sw.logger.Info("MCP server stopped")
	return stopErr
}

// IsRunning returns whether the server is currently running
func (sw *ServerWrapper) IsRunning() bool {
	sw.mutex.RLock()
	defer sw.mutex.RUnlock()
	return sw.isRunning
}

// WaitForShutdown blocks until Stop completes
func (sw *ServerWrapper) WaitForShutdown() {
	<-sw.shutdownChan
}

// Addr returns the bound listen address, or the configured one before Start
func (sw *ServerWrapper) Addr() string {
	sw.mutex.RLock()
	defer sw.mutex.RUnlock()

	if sw.listener != nil {
		return sw.listener.Addr().String()
	}
	return sw.serverConfig.Addr()
}

// GetConfig returns the server configuration
func (sw *ServerWrapper) GetConfig() *ServerConfig {
	return sw.serverConfig
}

// GetSDKServer returns the underlying SDK server instance
func (sw *ServerWrapper) GetSDKServer() *mcp.Server {
	return sw.sdkServer
}

type healthResponse struct {
	Status        string   `json:"status"`
	Server        string   `json:"server"`
	Version       string   `json:"version"`
	Tools         []string `json:"tools"`
	UptimeSeconds int64    `json:"uptime_seconds"`
}

func (sw *ServerWrapper) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	sw.mutex.RLock()
	startedAt := sw.startedAt
	sw.mutex.RUnlock()

	var uptime int64
	if !startedAt.IsZero() {
		uptime = int64(time.Since(startedAt).Seconds())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{
		Status:        "healthy",
		Server:        ServerName,
		Version:       ServerVersion,
		Tools:         sw.ToolNames(),
		UptimeSeconds: uptime,
	}); err != nil {
		sw.logger.Warn("failed to write health response", zap.Error(err))
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func newLoggingResponseWriter(w http.ResponseWriter) *loggingResponseWriter {
	return &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += int64(n)
	return n, err
}

// Flush keeps event streams working behind the logger
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func (sw *ServerWrapper) loggingMiddleware(next http.Handler) http.Handler {
	accessLog := sw.logger.Named("access")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := newLoggingResponseWriter(w)
		next.ServeHTTP(lrw, r)

		accessLog.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.status),
			zap.Int64("bytes", lrw.size),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
			zap.String("client_ip", extractClientIP(r)),
			zap.String("forwarded", strings.Join(r.Header.Values("X-Forwarded-For"), ",")),
			zap.String("user_agent", r.Header.Get("User-Agent")),
		)
	})
}
