package mcpserver

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolHandler handles a tool call with decoded arguments
type ToolHandler func(ctx context.Context, params map[string]interface{}) (*ToolResult, error)

// ToolDefinition describes a tool advertised over MCP
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// ToolResult is a single text result returned from a tool
type ToolResult struct {
	Text    string
	IsError bool
}

// ValidateToolDefinition validates a tool definition
func ValidateToolDefinition(definition ToolDefinition) error {
	if definition.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if definition.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if definition.InputSchema == nil {
		return fmt.Errorf("tool input schema cannot be nil")
	}
	if definition.InputSchema.Type != "object" {
		return fmt.Errorf("tool input schema must have type object, got: %q", definition.InputSchema.Type)
	}

	return nil
}

// CreateToolCallResult creates a successful tool call result
func CreateToolCallResult(content string) *ToolResult {
	return &ToolResult{Text: content}
}

// CreateToolCallErrorResult creates an error tool call result
func CreateToolCallErrorResult(errorMsg string) *ToolResult {
	return &ToolResult{Text: errorMsg, IsError: true}
}

func toSDKTool(definition ToolDefinition) *mcp.Tool {
	return &mcp.Tool{
		Name:        definition.Name,
		Description: definition.Description,
		InputSchema: definition.InputSchema,
	}
}

func toSDKResult(result *ToolResult) *mcp.CallToolResult {
	if result == nil {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: ""}}}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: result.Text}},
		IsError: result.IsError,
	}
}
