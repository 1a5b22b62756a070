package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m5stack/m5doc/internal/logger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var mcpTracer = otel.Tracer("m5doc/mcpserver")

// Error types recorded on the MCP error counter
const (
	errTypeInvalidArguments = "invalid_arguments"
	errTypeToolError        = "tool_error"
	errTypePanic            = "panic"
)

// ToolRegistryAdapter registers map-argument tool handlers with the SDK server
type ToolRegistryAdapter struct {
	server      *mcp.Server
	tools       map[string]ToolDefinition
	toolNameMap map[string]string // internal name -> advertised name
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewToolRegistryAdapter creates an adapter over server
func NewToolRegistryAdapter(server *mcp.Server, log *zap.Logger) *ToolRegistryAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ToolRegistryAdapter{
		server:      server,
		tools:       make(map[string]ToolDefinition),
		toolNameMap: make(map[string]string),
		logger:      log.Named("tools"),
	}
}

// RegisterTool registers a tool under its own name
func (tra *ToolRegistryAdapter) RegisterTool(definition ToolDefinition, handler ToolHandler) error {
	return tra.RegisterToolWithConfig(definition.Name, definition.Name, definition, handler)
}

// RegisterToolWithConfig registers a tool advertised as configuredName
func (tra *ToolRegistryAdapter) RegisterToolWithConfig(internalName, configuredName string, definition ToolDefinition, handler ToolHandler) error {
	if handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	tra.mutex.Lock()
	defer tra.mutex.Unlock()

	definition.Name = configuredName
	if err := ValidateToolDefinition(definition); err != nil {
		return fmt.Errorf("tool definition validation failed: %w", err)
	}
	if _, exists := tra.tools[internalName]; exists {
		return fmt.Errorf("tool with internal name '%s' already registered", internalName)
	}

	tra.server.AddTool(toSDKTool(definition), tra.createSDKHandler(configuredName, handler))

	tra.tools[internalName] = definition
	tra.toolNameMap[internalName] = configuredName

	tra.logger.Info("tool registered", zap.String("internal_name", internalName), zap.String("name", configuredName))
	return nil
}

// HasTool checks if tool exists
func (tra *ToolRegistryAdapter) HasTool(name string) bool {
	tra.mutex.RLock()
	defer tra.mutex.RUnlock()

	_, exists := tra.tools[name]
	return exists
}

// ToolCount returns number of registered tools
func (tra *ToolRegistryAdapter) ToolCount() int {
	tra.mutex.RLock()
	defer tra.mutex.RUnlock()

	return len(tra.tools)
}

// GetRegisteredToolNames returns the advertised tool names, sorted
func (tra *ToolRegistryAdapter) GetRegisteredToolNames() []string {
	tra.mutex.RLock()
	defer tra.mutex.RUnlock()

	names := make([]string, 0, len(tra.toolNameMap))
	for _, name := range tra.toolNameMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// createSDKHandler decodes arguments, scopes a request id and logger to the
// call, and converts errors and panics into error results
func (tra *ToolRegistryAdapter) createSDKHandler(toolName string, handler ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		requestID := uuid.NewString()
		start := time.Now()

		ctx, span := mcpTracer.Start(ctx, "mcp.tool_call")
		defer span.End()
		span.SetAttributes(
			attribute.String("mcp.tool", toolName),
			attribute.String("mcp.request_id", requestID),
		)

		log := tra.logger.With(zap.String("tool", toolName), zap.String("request_id", requestID))
		ctx = logger.ContextWithLogger(ctx, log)

		errType := ""
		defer func() {
			if r := recover(); r != nil {
				log.Error("tool handler panicked",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				span.SetStatus(codes.Error, "panic")
				errType = errTypePanic
				result = toSDKResult(CreateToolCallErrorResult(fmt.Sprintf("%s failed: internal error", toolName)))
				err = nil
			}
			recordMCPMetrics(ctx, []attribute.KeyValue{attribute.String("mcp.tool", toolName)}, time.Since(start), errType)
		}()

		params := make(map[string]interface{})
		if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
			if uerr := json.Unmarshal(req.Params.Arguments, &params); uerr != nil {
				log.Warn("invalid tool arguments", zap.Error(uerr))
				span.RecordError(uerr)
				span.SetStatus(codes.Error, errTypeInvalidArguments)
				errType = errTypeInvalidArguments
				return toSDKResult(CreateToolCallErrorResult(fmt.Sprintf("invalid arguments: %v", uerr))), nil
			}
		}

		toolResult, herr := handler(ctx, params)
		if herr != nil {
			log.Error("tool call failed", zap.Error(herr), zap.Duration("elapsed", time.Since(start)))
			span.RecordError(herr)
			span.SetStatus(codes.Error, errTypeToolError)
			errType = errTypeToolError
			if toolResult == nil {
				toolResult = CreateToolCallErrorResult(herr.Error())
			}
			return toSDKResult(toolResult), nil
		}

		if toolResult != nil && toolResult.IsError {
			errType = errTypeToolError
		}
		span.SetAttributes(attribute.Int("mcp.response_chars", len(toolResult.text())))
		span.SetStatus(codes.Ok, "tool_call_completed")
		log.Info("tool call completed", zap.Duration("elapsed", time.Since(start)))
		return toSDKResult(toolResult), nil
	}
}

func (r *ToolResult) text() string {
	if r == nil {
		return ""
	}
	return r.Text
}
