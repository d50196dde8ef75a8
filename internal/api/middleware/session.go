package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// SessionIDKey is the context key for the caller's reasoning session id.
const SessionIDKey contextKey = "session_id"

// SessionHeader carries the MCP session id in both directions.
const SessionHeader = "Mcp-Session-Id"

// SessionExtractor reads the caller's session id from the Mcp-Session-Id
// header, then the session query parameter. A missing id stays empty; the
// MCP handler mints one on first use.
func SessionExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if id == "" {
			id = strings.TrimSpace(r.URL.Query().Get("session"))
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID retrieves the session id from the request context.
func GetSessionID(ctx context.Context) string {
	if v, ok := ctx.Value(SessionIDKey).(string); ok {
		return v
	}
	return ""
}
