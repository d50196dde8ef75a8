package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fastertools/ftl-tool-think/internal/api/middleware"
	"github.com/fastertools/ftl-tool-think/internal/mcpgw"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── MCP Gateway Handlers ─────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// MCPEndpoint serves JSON-RPC over HTTP POST. Callers without a session id
// get a fresh one in the Mcp-Session-Id response header.
func (h *Handlers) MCPEndpoint(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	w.Header().Set(middleware.SessionHeader, sessionID)

	var req models.MCPRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondJSON(w, http.StatusOK, mcpgw.ParseError(err))
		return
	}

	log.Debug().Str("method", req.Method).Str("session", sessionID).Msg("MCP request received")

	resp := h.MCPGateway.HandleJSONRPC(r.Context(), sessionID, &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// MCPSSEEndpoint streams step notifications for the caller's session.
func (h *Handlers) MCPSSEEndpoint(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, errNoSession.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	ch := h.MCPGateway.Subscribe(sessionID)
	defer h.MCPGateway.Unsubscribe(sessionID, ch)

	setSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"session\":%q}\n\n", sessionID)
	flusher.Flush()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(msg)
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", string(data))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// ══════════════════════════════════════════════════════════════
// ── Tool Discovery ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Tools.MCPTools())
}

// ListOpenAITools returns the tools as OpenAI chat-completion function
// tools, ready to pass as the tools field of a completion request.
func (h *Handlers) ListOpenAITools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Tools.OpenAITools())
}
