package mcpserver

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"go.uber.org/zap"
)

// accessDeniedBody mirrors a JSON-RPC internal error so MCP clients surface it
const accessDeniedBody = `{"error": {"code": -32603, "message": "Access denied: IP not authorized"}}`

// IPAuthMiddleware restricts the MCP endpoints to an allow-list of
// addresses and CIDR ranges
type IPAuthMiddleware struct {
	entries       []string
	allowed       []netip.Prefix
	enableLogging bool
	logger        *zap.Logger
}

// NewIPAuthMiddleware parses allowedIPs. Blank entries are skipped; any
// unparsable entry is an error.
func NewIPAuthMiddleware(allowedIPs []string, enableLogging bool, log *zap.Logger) (*IPAuthMiddleware, error) {
	if len(allowedIPs) == 0 {
		return nil, fmt.Errorf("no allowed IPs specified")
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &IPAuthMiddleware{
		entries:       allowedIPs,
		enableLogging: enableLogging,
		logger:        log.Named("ipauth"),
	}
	for _, entry := range allowedIPs {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		prefix, err := ParseCIDROrIP(entry)
		if err != nil {
			return nil, err
		}
		m.allowed = append(m.allowed, prefix)
	}

	if enableLogging {
		m.logger.Info("IP allow-list loaded", zap.Int("allowed_ranges", len(m.allowed)))
	}
	return m, nil
}

// Middleware answers 403 for clients outside the allow-list. /health is always
// reachable.
func (m *IPAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == PathHealth {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := extractClientIP(r)
		if m.IsIPAllowed(clientIP) {
			next.ServeHTTP(w, r)
			return
		}

		if m.enableLogging {
			m.logger.Warn("access denied",
				zap.String("client_ip", clientIP),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("user_agent", r.UserAgent()),
			)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(accessDeniedBody))
	})
}

// IsIPAllowed reports whether ipStr falls in any allowed range. IPv4-mapped
// IPv6 addresses match their IPv4 entries.
func (m *IPAuthMiddleware) IsIPAllowed(ipStr string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ipStr))
	if err != nil {
		if ipStr != "" && m.enableLogging {
			m.logger.Debug("unparsable client IP", zap.String("client_ip", ipStr))
		}
		return false
	}
	addr = addr.WithZone("").Unmap()

	for _, prefix := range m.allowed {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// GetAllowedIPs returns the configured entries
func (m *IPAuthMiddleware) GetAllowedIPs() []string {
	return m.entries
}

// ParseCIDROrIP parses a CIDR block or a single address, which becomes a
// host prefix
func ParseCIDROrIP(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid CIDR block %s: %w", s, err)
		}
		return prefix.Masked(), nil
	}

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid IP address %s: %w", s, err)
	}
	addr = addr.WithZone("").Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the socket peer
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
