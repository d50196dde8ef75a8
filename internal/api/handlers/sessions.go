package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fastertools/ftl-tool-think/internal/chain"
	"github.com/fastertools/ftl-tool-think/internal/tools"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Session Handlers ─────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Sessions.ListSessions(r.Context()))
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.CreateSession(r.Context())
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess.Info())
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Detail())
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if err := h.Sessions.DeleteSession(r.Context(), id); err != nil {
		respondSessionError(w, err)
		return
	}
	log.Info().Str("session", id).Msg("Reasoning session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════
// ── Chain Handlers ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListThoughts(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Detail().Thoughts)
}

// SubmitThought appends one thought. Unlike the MCP route, the session
// must already exist.
func (h *Handlers) SubmitThought(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondSessionError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in, err := tools.DecodeThoughtInput(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	step, err := sess.Submit(r.Context(), in)
	if err != nil {
		if ve, ok := chain.AsValidationError(err); ok {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": ve.Message,
				"kind":  string(ve.Kind),
				"field": ve.Field,
			})
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, step)
}

func (h *Handlers) ListBranches(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Detail().Branches)
}

// GetLineage returns the ordered view of ?branch=<id>; no branch means
// the main line.
func (h *Handlers) GetLineage(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondSessionError(w, err)
		return
	}

	branch := r.URL.Query().Get("branch")
	if branch == "main" {
		branch = models.MainBranch
	}
	thoughts, ok := sess.Lineage(branch)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("branch %q not found", branch))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"branch":   chain.BranchLabel(branch),
		"thoughts": thoughts,
	})
}

// StreamSession replays the session's recent steps and then streams new
// ones as SSE. ?replay=N limits the replay; 0 skips it.
func (h *Handlers) StreamSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondSessionError(w, err)
		return
	}

	// history follows Feed.SubscribeRecent: 0 is everything, -1 nothing.
	history := 0
	if v := r.URL.Query().Get("replay"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "replay must be a non-negative integer")
			return
		}
		history = n
		if n == 0 {
			history = -1
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	feed := sess.Feed()
	recent, ch := feed.SubscribeRecent(history)
	defer feed.Unsubscribe(ch)

	setSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"session\":%q}\n\n", sess.ID())
	for _, ev := range recent {
		writeSSE(w, "step", ev)
	}
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			writeSSE(w, "step", ev)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

func writeSSE(w io.Writer, event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("SSE encode failed")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

var errNoSession = errors.New("session id required: set the Mcp-Session-Id header or the session query parameter")
