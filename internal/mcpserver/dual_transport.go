package mcpserver

import (
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DualTransportHandler serves SSE and streamable HTTP clients on one path
type DualTransportHandler struct {
	streamable http.Handler
	sse        http.Handler
}

// NewDualTransportHandler routes between the given SSE handler and a new
// streamable HTTP handler. Sharing sse with other paths keeps one session table.
func NewDualTransportHandler(getServer func(*http.Request) *mcp.Server, sse *mcp.SSEHandler) *DualTransportHandler {
	if sse == nil {
		sse = mcp.NewSSEHandler(getServer, nil)
	}
	return &DualTransportHandler{
		streamable: mcp.NewStreamableHTTPHandler(getServer, nil),
		sse:        sse,
	}
}

// ServeHTTP sends SSE session traffic to the SSE handler and everything else
// to the streamable handler
func (h *DualTransportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isSSERequest(r) {
		h.sse.ServeHTTP(w, r)
		return
	}
	h.streamable.ServeHTTP(w, r)
}

func isSSERequest(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost:
		// SSE message posts carry the session id in the query
		return r.URL.Query().Has("sessionid")
	case http.MethodGet:
		// streamable clients resume their stream with a session header
		if r.Header.Get("Mcp-Session-Id") != "" {
			return false
		}
		return acceptsEventStream(r)
	default:
		return false
	}
}

func acceptsEventStream(r *http.Request) bool {
	for _, value := range r.Header.Values("Accept") {
		for _, c := range strings.Split(value, ",") {
			mediaType := strings.TrimSpace(strings.SplitN(c, ";", 2)[0])
			if mediaType == "text/event-stream" || mediaType == "*/*" || strings.HasPrefix(mediaType, "text/") {
				return true
			}
		}
	}
	return false
}
