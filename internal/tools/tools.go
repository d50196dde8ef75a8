// Package tools describes the callable tools exposed over MCP and the
// REST API, and exports them in the OpenAI function-tool format.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/stoewer/go-strcase"

	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// Submitter is the session surface a tool runs against.
type Submitter interface {
	Submit(ctx context.Context, in models.ThoughtInput) (*models.RenderedStep, error)
}

// Tool is one callable tool.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	// Call runs the tool. Argument problems come back as *ArgumentError;
	// domain failures are reported inside the result with IsError set.
	Call(ctx context.Context, s Submitter, args json.RawMessage) (*models.MCPToolResult, error)
}

// ArgumentError reports tool arguments that could not be decoded.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// NormalizeName maps tool name spellings onto their snake_case form, so
// "StructuredReasoning" and "structured-reasoning" both resolve.
func NormalizeName(name string) string {
	return strcase.SnakeCase(strings.TrimSpace(name))
}

// Registry is a thread-safe set of tools keyed by normalised name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[NormalizeName(t.Name())] = t
}

// Get resolves a tool by any spelling of its name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[NormalizeName(name)]
	return t, ok
}

// List returns the tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// MCPTools returns the tools as MCP tool descriptors.
func (r *Registry) MCPTools() []models.MCPToolInfo {
	list := r.List()
	out := make([]models.MCPToolInfo, 0, len(list))
	for _, t := range list {
		out = append(out, models.MCPToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return out
}

// OpenAITools returns the tools as OpenAI chat-completion function tools.
func (r *Registry) OpenAITools() []openai.ChatCompletionToolParam {
	list := r.List()
	out := make([]openai.ChatCompletionToolParam, 0, len(list))
	for _, t := range list {
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  t.InputSchema(),
			},
		})
	}
	return out
}

// SchemaFor reflects a JSON schema from a Go argument struct, inlined with
// no $defs so clients that ignore references still see every field.
func SchemaFor(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(v)
	if schema == nil {
		return nil, fmt.Errorf("failed to generate schema")
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}
