// Package handlers implements the HTTP handlers for the reasoning tool
// server: the MCP endpoints, the session REST API and tool discovery.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fastertools/ftl-tool-think/internal/mcpgw"
	"github.com/fastertools/ftl-tool-think/internal/sessions"
	"github.com/fastertools/ftl-tool-think/internal/tools"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Sessions   *sessions.MemorySessionStore
	MCPGateway *mcpgw.Gateway
	Tools      *tools.Registry
}

// New creates a new Handlers instance with all dependencies.
func New(s *sessions.MemorySessionStore, gw *mcpgw.Gateway) *Handlers {
	return &Handlers{
		Sessions:   s,
		MCPGateway: gw,
		Tools:      gw.Tools(),
	}
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondSessionError maps session store errors onto HTTP statuses.
func respondSessionError(w http.ResponseWriter, err error) {
	var nf *sessions.ErrNotFound
	var lr *sessions.ErrLimitReached
	switch {
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &lr):
		respondError(w, http.StatusTooManyRequests, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
