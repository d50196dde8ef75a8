package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fastertools/ftl-tool-think/internal/chain"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// ReasoningToolName is the wire name of the structured reasoning tool.
const ReasoningToolName = "structured_reasoning"

const reasoningDescription = `A structured reasoning tool for dynamic and reflective problem-solving. Each call records one reasoning step; steps can build on, question, revise or branch from earlier ones as understanding deepens.

When to use this tool:
- Breaking down complex problems into structured reasoning steps
- Planning and design with room for revision
- Analysis that might need course correction or alternative approaches
- Problems whose full scope is not clear initially

Parameters:
- thought: the current reasoning step
- next_thought_needed: true if more steps are needed, even at what seemed like the end
- thought_number: current step number (may exceed the current total)
- total_thoughts: current estimate of steps needed (may be adjusted up or down)
- is_revision / revises_thought: mark a step that reconsiders an earlier one
- branch_from_thought / branch_id: start or continue an alternative line of reasoning
- needs_more_thoughts: reaching the end but realising more steps are needed
- thought_type: "analytical" (default), "critical", "synthesis" or "validation"
- confidence: confidence in this step, 0.0 to 1.0
- custom_lens: analytical lens to apply, e.g. "security"

Only set next_thought_needed to false when the reasoning is complete and the conclusion is satisfactory.`

// ReasoningResult is the structured content of a successful call.
type ReasoningResult struct {
	Thought models.Thought        `json:"thought"`
	Lineage []int                 `json:"lineage"`
	Summary models.SessionSummary `json:"summary"`
}

// ReasoningError is the structured content of a rejected call.
type ReasoningError struct {
	Error string     `json:"error"`
	Kind  chain.Kind `json:"kind"`
	Field string     `json:"field,omitempty"`
}

// ReasoningTool appends one thought to the caller's session chain.
type ReasoningTool struct {
	schema map[string]any
}

// NewReasoningTool builds the tool and reflects its input schema.
func NewReasoningTool() (*ReasoningTool, error) {
	schema, err := SchemaFor(&models.ThoughtInput{})
	if err != nil {
		return nil, fmt.Errorf("reasoning tool schema: %w", err)
	}
	return &ReasoningTool{schema: schema}, nil
}

func (t *ReasoningTool) Name() string                { return ReasoningToolName }
func (t *ReasoningTool) Description() string         { return reasoningDescription }
func (t *ReasoningTool) InputSchema() map[string]any { return t.schema }

// DecodeThoughtInput parses tool arguments. next_thought_needed must be
// present; everything else the engine validates.
func DecodeThoughtInput(args json.RawMessage) (models.ThoughtInput, error) {
	var in models.ThoughtInput
	if len(bytes.TrimSpace(args)) == 0 {
		return in, errors.New("arguments are required")
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return in, err
	}
	if in.NextThoughtNeeded == nil {
		return in, errors.New("next_thought_needed is required")
	}
	return in, nil
}

// Call decodes the arguments and submits the thought.
func (t *ReasoningTool) Call(ctx context.Context, s Submitter, args json.RawMessage) (*models.MCPToolResult, error) {
	in, err := DecodeThoughtInput(args)
	if err != nil {
		return nil, &ArgumentError{Tool: ReasoningToolName, Err: err}
	}

	step, err := s.Submit(ctx, in)
	if err != nil {
		ve, ok := chain.AsValidationError(err)
		if !ok {
			return nil, err
		}
		res := models.TextResult(ve.Error())
		res.IsError = true
		res.StructuredContent = ReasoningError{Error: ve.Message, Kind: ve.Kind, Field: ve.Field}
		return res, nil
	}

	res := models.TextResult(step.Text)
	res.StructuredContent = ReasoningResult{
		Thought: step.Thought,
		Lineage: step.Lineage,
		Summary: step.Summary,
	}
	return res, nil
}
