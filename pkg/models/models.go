// Package models holds the data types shared by the reasoning engine, the
// session layer and the transports.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════
// ── Thought Types ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ThoughtType is the reasoning mode a thought was written in.
type ThoughtType string

const (
	ThoughtAnalytical ThoughtType = "analytical" // default reasoning mode
	ThoughtCritical   ThoughtType = "critical"   // looks for flaws and issues
	ThoughtSynthesis  ThoughtType = "synthesis"  // combines perspectives
	ThoughtValidation ThoughtType = "validation" // verifies conclusions
)

// ThoughtTypes lists every accepted thought type in display order.
var ThoughtTypes = []ThoughtType{ThoughtAnalytical, ThoughtCritical, ThoughtSynthesis, ThoughtValidation}

// ParseThoughtType maps a wire value to a ThoughtType. The empty string
// yields the default (analytical).
func ParseThoughtType(s string) (ThoughtType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return ThoughtAnalytical, nil
	}
	for _, t := range ThoughtTypes {
		if string(t) == v {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown thought_type %q (want one of analytical, critical, synthesis, validation)", s)
}

// OrDefault returns t, or analytical when t is unset.
func (t ThoughtType) OrDefault() ThoughtType {
	if t == "" {
		return ThoughtAnalytical
	}
	return t
}

// UnmarshalJSON rejects values outside the closed set.
func (t *ThoughtType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("thought_type must be a string: %w", err)
	}
	parsed, err := ParseThoughtType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ══════════════════════════════════════════════════════════════
// ── Tool Input ───────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ThoughtInput is the argument object of the structured reasoning tool.
// Pointer fields distinguish "absent" from zero values.
type ThoughtInput struct {
	Thought           string      `json:"thought" jsonschema:"minLength=1" jsonschema_description:"The current reasoning step: analysis, a revision, a question about an earlier step, a hypothesis or a verification."`
	NextThoughtNeeded *bool       `json:"next_thought_needed" jsonschema_description:"True if another reasoning step is needed, even if this looked like the end."`
	ThoughtNumber     int         `json:"thought_number" jsonschema:"minimum=1" jsonschema_description:"Number of this step. May exceed the current total."`
	TotalThoughts     int         `json:"total_thoughts" jsonschema:"minimum=1" jsonschema_description:"Current estimate of steps needed. May be adjusted up or down."`
	IsRevision        bool        `json:"is_revision,omitempty" jsonschema_description:"Whether this step revises an earlier one."`
	RevisesThought    *int        `json:"revises_thought,omitempty" jsonschema:"minimum=1" jsonschema_description:"The step being reconsidered. Required when is_revision is true."`
	BranchFromThought *int        `json:"branch_from_thought,omitempty" jsonschema:"minimum=1" jsonschema_description:"The step this branch forks from."`
	BranchID          string      `json:"branch_id,omitempty" jsonschema_description:"Identifier of the branch this step belongs to. Required with branch_from_thought."`
	NeedsMoreThoughts bool        `json:"needs_more_thoughts,omitempty" jsonschema_description:"Set when reaching the end but realising more steps are needed."`
	ThoughtType       ThoughtType `json:"thought_type,omitempty" jsonschema:"enum=analytical,enum=critical,enum=synthesis,enum=validation" jsonschema_description:"Reasoning mode. Defaults to analytical."`
	Confidence        *float64    `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=1" jsonschema_description:"Confidence in this step, from 0.0 to 1.0."`
	CustomLens        string      `json:"custom_lens,omitempty" jsonschema_description:"Analytical lens to apply, e.g. security or performance."`
}

// Continue reports whether the caller asked for another step. A missing
// next_thought_needed reads as false; transports reject it before this.
func (in ThoughtInput) Continue() bool {
	return in.NextThoughtNeeded != nil && *in.NextThoughtNeeded
}

// ══════════════════════════════════════════════════════════════
// ── Chain Entries ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// MainBranch is the branch id of the unlabeled main line.
const MainBranch = ""

// Thought is one immutable entry of a reasoning chain. Seq is the
// 1-based submission index and the chain's real key; Number is the
// caller's label and may repeat.
type Thought struct {
	Seq           int         `json:"seq"`
	Number        int         `json:"number"`
	Text          string      `json:"text"`
	Type          ThoughtType `json:"type"`
	Confidence    *float64    `json:"confidence,omitempty"`
	Lens          string      `json:"lens,omitempty"`
	IsRevision    bool        `json:"is_revision,omitempty"`
	RevisesNumber int         `json:"revises_number,omitempty"`
	RevisesSeq    int         `json:"revises_seq,omitempty"` // back-reference into the chain
	BranchFrom    int         `json:"branch_from,omitempty"`
	ForkSeq       int         `json:"fork_seq,omitempty"` // back-reference into the chain
	BranchID      string      `json:"branch_id,omitempty"`
	NeedsMore     bool        `json:"needs_more,omitempty"`
	Continue      bool        `json:"continue"`
	TotalEstimate int         `json:"total_estimate"`
	SubmittedAt   time.Time   `json:"submitted_at"`
}

// OnMainLine reports whether the thought belongs to the unlabeled main line.
func (t Thought) OnMainLine() bool {
	return t.BranchID == MainBranch
}

// Branch is one entry of the branch index.
type Branch struct {
	ID         string `json:"id"`
	ForkNumber int    `json:"fork_number"`
	ForkSeq    int    `json:"fork_seq"`
	ParentID   string `json:"parent_id"` // branch of the fork entry; "" is the main line
	Members    []int  `json:"members"`   // seqs in submission order
}

// ══════════════════════════════════════════════════════════════
// ── Session State ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// SessionState is the completion state of a reasoning session.
type SessionState string

const (
	SessionActive SessionState = "ACTIVE"
	SessionDone   SessionState = "DONE"
)

// SessionSummary is the structural metadata returned with every render.
type SessionSummary struct {
	CurrentTotalEstimate int          `json:"current_total_estimate"`
	HighestNumber        int          `json:"highest_number"`
	Active               bool         `json:"active"`
	State                SessionState `json:"state"`
	BranchID             string       `json:"branch_id"` // branch of the last processed thought
	ChainLength          int          `json:"chain_length"`
	Branches             []string     `json:"branches"`
	EarlyTermination     bool         `json:"early_termination"`
}

// RenderedStep is the result of a successful submission.
type RenderedStep struct {
	Text    string         `json:"text"`
	Thought Thought        `json:"thought"`
	Lineage []int          `json:"lineage"` // seqs of the active branch lineage
	Summary SessionSummary `json:"summary"`
}

// SessionInfo describes a hosted session.
type SessionInfo struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Summary   SessionSummary `json:"summary"`
}

// SessionDetail is a session with its full chain and branch index.
type SessionDetail struct {
	SessionInfo
	Thoughts []Thought `json:"thoughts"`
	Branches []Branch  `json:"branches"`
}

// FeedEvent is one entry of a session's live feed.
type FeedEvent struct {
	SessionID string       `json:"session_id"`
	Timestamp time.Time    `json:"timestamp"`
	Step      RenderedStep `json:"step"`
}
