package models

import "encoding/json"

// ── MCP Protocol Types ───────────────────────────────────────

// MCPProtocolVersion is the protocol revision announced on initialize.
const MCPProtocolVersion = "2024-11-05"

// JSON-RPC error codes used by the gateway.
const (
	RPCParseError     = -32700
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603
	RPCToolNotFound   = -32001
)

type MCPRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *MCPRequest) IsNotification() bool {
	return r.ID == nil
}

type MCPResponse struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method,omitempty"` // set on server notifications
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type MCPToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

type MCPToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type MCPToolResult struct {
	Content           []MCPContent `json:"content"`
	IsError           bool         `json:"isError,omitempty"`
	StructuredContent interface{}  `json:"structuredContent,omitempty"`
}

type MCPContent struct {
	Type string `json:"type"` // text
	Text string `json:"text,omitempty"`
}

// TextResult wraps a single text block as a tool result.
func TextResult(text string) *MCPToolResult {
	return &MCPToolResult{Content: []MCPContent{{Type: "text", Text: text}}}
}
