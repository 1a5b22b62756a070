package mcpserver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m5stack/m5doc/internal/knowledge"
	"github.com/m5stack/m5doc/internal/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func testConfig() *types.Config {
	return &types.Config{
		MCPServerHost:                "127.0.0.1",
		MCPServerPort:                5058,
		MCPServerReadTimeout:         5 * time.Second,
		MCPServerIdleTimeout:         30 * time.Second,
		MCPServerShutdownTimeout:     2 * time.Second,
		MCPServerMaxHeaderBytes:      1 << 20,
		MCPServerGracefulShutdown:    true,
		MCPServerEnableAccessLogging: true,
		MCPAllowedIPs:                []string{"127.0.0.1", "::1"},
	}
}

type fakeRetriever struct {
	mu      sync.Mutex
	queries []knowledge.Query
	answer  string
	err     error
	panics  bool
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q knowledge.Query) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.panics {
		panic("retriever exploded")
	}
	return f.answer, f.err
}

func (f *fakeRetriever) calls() []knowledge.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]knowledge.Query(nil), f.queries...)
}

// connectClient connects an in-memory MCP client to server
func connectClient(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}
