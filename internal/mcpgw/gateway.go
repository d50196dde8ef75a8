// Package mcpgw implements the MCP (Model Context Protocol) gateway for
// the reasoning tools.
//
// The gateway speaks JSON-RPC 2.0 and is transport-agnostic: the HTTP
// handlers and the stdio loop both feed it decoded requests. It supports:
//   - The initialize / ping handshake
//   - Tool discovery through the tool registry
//   - Tool invocation against the caller's reasoning session
//   - Per-session SSE notification fan-out
package mcpgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fastertools/ftl-tool-think/internal/sessions"
	"github.com/fastertools/ftl-tool-think/internal/telemetry"
	"github.com/fastertools/ftl-tool-think/internal/tools"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// StepNotification is the method of the notification broadcast after
// every accepted thought.
const StepNotification = "notifications/reasoning/step"

// SessionResolver hands the gateway the session a call runs against.
type SessionResolver interface {
	GetOrCreateSession(ctx context.Context, id string) (*sessions.Session, bool, error)
}

// Gateway dispatches MCP requests to the tool registry.
type Gateway struct {
	sessions SessionResolver
	tools    *tools.Registry
	name     string
	version  string

	// SSE subscribers: session → channels
	subsMu sync.RWMutex
	subs   map[string][]chan models.MCPResponse
}

// NewGateway creates a new MCP gateway.
func NewGateway(s SessionResolver, reg *tools.Registry, version string) *Gateway {
	return &Gateway{
		sessions: s,
		tools:    reg,
		name:     "ftl-tool-think",
		version:  version,
		subs:     make(map[string][]chan models.MCPResponse),
	}
}

// Tools returns the gateway's tool registry.
func (gw *Gateway) Tools() *tools.Registry {
	return gw.tools
}

// HandleJSONRPC processes an MCP JSON-RPC 2.0 request for the given
// session. It returns nil for notifications.
func (gw *Gateway) HandleJSONRPC(ctx context.Context, sessionID string, req *models.MCPRequest) *models.MCPResponse {
	if req.Jsonrpc != "2.0" {
		return rpcError(req.ID, models.RPCInvalidRequest, "Invalid Request",
			fmt.Sprintf("jsonrpc must be \"2.0\", got %q", req.Jsonrpc))
	}

	switch req.Method {

	// ── Handshake ────────────────────────────────────
	case "initialize":
		return gw.handleInitialize(req)

	case "ping":
		return &models.MCPResponse{
			Jsonrpc: "2.0",
			Result:  map[string]interface{}{},
			ID:      req.ID,
		}

	// ── Discovery ────────────────────────────────────
	case "tools/list":
		return &models.MCPResponse{
			Jsonrpc: "2.0",
			Result: map[string]interface{}{
				"tools": gw.tools.MCPTools(),
			},
			ID: req.ID,
		}

	// ── Tool Invocation ──────────────────────────────
	case "tools/call":
		return gw.handleToolsCall(ctx, sessionID, req)
	}

	// ── Notifications (no response) ──────────────────
	if strings.HasPrefix(req.Method, "notifications/") {
		log.Debug().Str("session", sessionID).Str("method", req.Method).Msg("MCP notification")
		return nil
	}
	if req.IsNotification() {
		return nil
	}

	return rpcError(req.ID, models.RPCMethodNotFound, "Method not found",
		fmt.Sprintf("Method '%s' is not supported by the MCP gateway", req.Method))
}

// handleInitialize responds to the MCP initialize handshake.
func (gw *Gateway) handleInitialize(req *models.MCPRequest) *models.MCPResponse {
	return &models.MCPResponse{
		Jsonrpc: "2.0",
		Result: map[string]interface{}{
			"protocolVersion": models.MCPProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{
					"listChanged": false,
				},
			},
			"serverInfo": map[string]string{
				"name":    gw.name,
				"version": gw.version,
			},
		},
		ID: req.ID,
	}
}

// handleToolsCall invokes a registered tool against the caller's session.
func (gw *Gateway) handleToolsCall(ctx context.Context, sessionID string, req *models.MCPRequest) *models.MCPResponse {
	var params models.MCPToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		telemetry.ToolCalls.WithLabelValues("", "invalid_params").Inc()
		return rpcError(req.ID, models.RPCInvalidParams, "Invalid params", err.Error())
	}

	tool, ok := gw.tools.Get(params.Name)
	if !ok {
		telemetry.ToolCalls.WithLabelValues(params.Name, "not_found").Inc()
		return rpcError(req.ID, models.RPCToolNotFound, "Tool not found",
			fmt.Sprintf("Tool '%s' is not registered", params.Name))
	}

	sess, created, err := gw.sessions.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		telemetry.ToolCalls.WithLabelValues(tool.Name(), "internal").Inc()
		return rpcError(req.ID, models.RPCInternalError, "Internal error", err.Error())
	}
	if created {
		log.Debug().Str("session", sess.ID()).Msg("Session opened by tools/call")
	}

	result, err := tool.Call(ctx, sess, params.Arguments)
	if err != nil {
		var ae *tools.ArgumentError
		if errors.As(err, &ae) {
			telemetry.ToolCalls.WithLabelValues(tool.Name(), "invalid_params").Inc()
			return rpcError(req.ID, models.RPCInvalidParams, "Invalid params", ae.Error())
		}
		telemetry.ToolCalls.WithLabelValues(tool.Name(), "internal").Inc()
		log.Error().Err(err).Str("session", sess.ID()).Str("tool", tool.Name()).Msg("Tool execution failed")
		return rpcError(req.ID, models.RPCInternalError, "Internal error", err.Error())
	}

	if result.IsError {
		telemetry.ToolCalls.WithLabelValues(tool.Name(), "tool_error").Inc()
	} else {
		telemetry.ToolCalls.WithLabelValues(tool.Name(), "ok").Inc()
		gw.Broadcast(sess.ID(), models.MCPResponse{
			Jsonrpc: "2.0",
			Method:  StepNotification,
			Result:  result.StructuredContent,
		})
	}

	return &models.MCPResponse{
		Jsonrpc: "2.0",
		Result:  result,
		ID:      req.ID,
	}
}

func rpcError(id interface{}, code int, msg string, data interface{}) *models.MCPResponse {
	return &models.MCPResponse{
		Jsonrpc: "2.0",
		Error: &models.MCPError{
			Code:    code,
			Message: msg,
			Data:    data,
		},
		ID: id,
	}
}

// ParseError builds the response for a request body that is not JSON.
func ParseError(err error) *models.MCPResponse {
	return rpcError(nil, models.RPCParseError, "Parse error", err.Error())
}

// ── SSE Subscription Management ─────────────────────────────

// Subscribe creates an SSE subscription for a session.
func (gw *Gateway) Subscribe(sessionID string) <-chan models.MCPResponse {
	ch := make(chan models.MCPResponse, 32)
	gw.subsMu.Lock()
	gw.subs[sessionID] = append(gw.subs[sessionID], ch)
	gw.subsMu.Unlock()
	return ch
}

// Unsubscribe removes an SSE subscription.
func (gw *Gateway) Unsubscribe(sessionID string, ch <-chan models.MCPResponse) {
	gw.subsMu.Lock()
	defer gw.subsMu.Unlock()

	subs := gw.subs[sessionID]
	for i, s := range subs {
		if s == ch {
			gw.subs[sessionID] = append(subs[:i], subs[i+1:]...)
			close(s)
			break
		}
	}
	if len(gw.subs[sessionID]) == 0 {
		delete(gw.subs, sessionID)
	}
}

// Broadcast sends a notification to all subscribers of a session.
func (gw *Gateway) Broadcast(sessionID string, resp models.MCPResponse) {
	gw.subsMu.RLock()
	defer gw.subsMu.RUnlock()

	for _, ch := range gw.subs[sessionID] {
		select {
		case ch <- resp:
		default:
			// Drop if subscriber is too slow
		}
	}
}
