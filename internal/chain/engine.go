// Package chain implements the reasoning-chain engine: an append-only arena
// of thoughts with revision and branch back-references, a running estimate
// of how many thoughts are needed, and the caller-driven ACTIVE/DONE state.
//
// An Engine holds the state of exactly one session. It performs no I/O and
// takes no locks; callers serialise Submit calls for a given Engine.
package chain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// DuplicatePolicy decides what happens when a thought reuses a number that
// is already in the chain without being marked as a revision.
type DuplicatePolicy string

const (
	// DuplicatePermit keeps both entries; the render shows each of them.
	DuplicatePermit DuplicatePolicy = "permit"
	// DuplicateReject fails the submission with DuplicateNumberError.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateRevise records the thought as a revision of the latest entry
	// carrying the same number.
	DuplicateRevise DuplicatePolicy = "revise"
)

// ParseDuplicatePolicy parses a policy name; "" means permit.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DuplicatePermit, nil
	case DuplicatePermit, DuplicateReject, DuplicateRevise:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithDuplicatePolicy sets the duplicate-number policy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(e *Engine) {
		if p != "" {
			e.policy = p
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type branch struct {
	id         string
	forkNumber int
	forkSeq    int
	parent     string
	members    []int
}

// Engine is the reasoning-chain state of one session.
type Engine struct {
	thoughts []models.Thought
	byNumber map[int][]int // number → seqs, submission order
	branches map[string]*branch
	order    []string // branch ids in creation order

	estimate   int
	highest    int
	active     bool
	earlyStop  bool
	lastBranch string

	policy DuplicatePolicy
	now    func() time.Time
}

// New creates an empty engine in the ACTIVE state.
func New(opts ...Option) *Engine {
	e := &Engine{
		byNumber: make(map[int][]int),
		branches: make(map[string]*branch),
		active:   true,
		policy:   DuplicatePermit,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's duplicate-number policy.
func (e *Engine) Policy() DuplicatePolicy {
	return e.policy
}

// Submit validates in and, if it is accepted, appends it to the chain and
// returns the rendered step. A rejected input returns a *ValidationError
// and leaves the engine unchanged.
func (e *Engine) Submit(in models.ThoughtInput) (*models.RenderedStep, error) {
	t, err := e.prepare(in)
	if err != nil {
		return nil, err
	}
	e.apply(t)
	return e.render(t), nil
}

// prepare runs the checks in their fixed order and builds the entry to
// append. It must not touch engine state.
func (e *Engine) prepare(in models.ThoughtInput) (models.Thought, error) {
	t := models.Thought{
		Seq:           len(e.thoughts) + 1,
		Number:        in.ThoughtNumber,
		Text:          in.Thought,
		Type:          in.ThoughtType.OrDefault(),
		Confidence:    in.Confidence,
		Lens:          strings.TrimSpace(in.CustomLens),
		NeedsMore:     in.NeedsMoreThoughts,
		Continue:      in.Continue(),
		TotalEstimate: in.TotalThoughts,
	}

	if strings.TrimSpace(in.Thought) == "" {
		return t, invalid(KindEmptyThought, "thought", "thought text must not be empty")
	}

	if c := in.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		return t, invalid(KindConfidenceRange, "confidence", "confidence %v is outside [0.0, 1.0]", *c)
	}

	if in.IsRevision {
		if in.RevisesThought == nil {
			return t, invalid(KindUnknownReference, "revises_thought", "is_revision is set but revises_thought is missing")
		}
		seq, ok := e.latest(*in.RevisesThought)
		if !ok {
			return t, invalid(KindUnknownReference, "revises_thought", "thought #%d was never submitted", *in.RevisesThought)
		}
		if *in.RevisesThought > in.ThoughtNumber {
			return t, invalid(KindUnknownReference, "revises_thought", "thought #%d cannot revise the later thought #%d", in.ThoughtNumber, *in.RevisesThought)
		}
		t.IsRevision = true
		t.RevisesNumber = *in.RevisesThought
		t.RevisesSeq = seq
	}

	branchID := strings.TrimSpace(in.BranchID)
	if in.BranchFromThought != nil {
		seq, ok := e.latest(*in.BranchFromThought)
		if !ok {
			return t, invalid(KindUnknownReference, "branch_from_thought", "thought #%d was never submitted", *in.BranchFromThought)
		}
		if branchID == "" {
			return t, invalid(KindMissingBranchID, "branch_id", "branch_from_thought #%d needs a branch_id", *in.BranchFromThought)
		}
		t.BranchFrom = *in.BranchFromThought
		t.ForkSeq = seq
		t.BranchID = branchID
	} else if branchID != "" {
		b, ok := e.branches[branchID]
		if !ok {
			return t, invalid(KindUnknownReference, "branch_id", "branch %q does not exist; start it with branch_from_thought", branchID)
		}
		t.BranchID = branchID
		t.BranchFrom = b.forkNumber
		t.ForkSeq = b.forkSeq
	}

	if in.ThoughtNumber < 1 {
		return t, invalid(KindInvalidNumber, "thought_number", "thought_number %d is not a positive integer", in.ThoughtNumber)
	}
	if in.TotalThoughts < 1 {
		return t, invalid(KindInvalidNumber, "total_thoughts", "total_thoughts %d is not a positive integer", in.TotalThoughts)
	}

	typ, err := models.ParseThoughtType(string(in.ThoughtType))
	if err != nil {
		return t, invalid(KindInvalidThoughtType, "thought_type", "%v", err)
	}
	t.Type = typ

	if prev, seen := e.latest(in.ThoughtNumber); seen && !t.IsRevision {
		switch e.policy {
		case DuplicateReject:
			return t, invalid(KindDuplicateNumber, "thought_number", "thought #%d already exists (entry %d); mark the step as a revision", in.ThoughtNumber, prev)
		case DuplicateRevise:
			t.IsRevision = true
			t.RevisesNumber = in.ThoughtNumber
			t.RevisesSeq = prev
		}
	}

	return t, nil
}

func (e *Engine) apply(t models.Thought) {
	t.SubmittedAt = e.now()
	e.thoughts = append(e.thoughts, t)
	e.byNumber[t.Number] = append(e.byNumber[t.Number], t.Seq)

	if !t.OnMainLine() {
		b, ok := e.branches[t.BranchID]
		if !ok {
			b = &branch{
				id:         t.BranchID,
				forkNumber: t.BranchFrom,
				forkSeq:    t.ForkSeq,
				parent:     e.thoughts[t.ForkSeq-1].BranchID,
			}
			e.branches[t.BranchID] = b
			e.order = append(e.order, t.BranchID)
		}
		b.members = append(b.members, t.Seq)
	}

	if t.Number > e.highest {
		e.highest = t.Number
	}
	e.estimate = max(e.estimate, t.TotalEstimate, t.Number)
	if t.NeedsMore && t.Number == e.estimate && e.estimate < math.MaxInt {
		e.estimate++
	}

	e.active = t.Continue
	e.earlyStop = !t.Continue && t.Number < e.estimate
	e.lastBranch = t.BranchID
}

// latest returns the seq of the most recent entry carrying number.
func (e *Engine) latest(number int) (int, bool) {
	seqs := e.byNumber[number]
	if len(seqs) == 0 {
		return 0, false
	}
	return seqs[len(seqs)-1], true
}

// ── Read API ─────────────────────────────────────────────────

// Len returns the number of thoughts in the chain.
func (e *Engine) Len() int {
	return len(e.thoughts)
}

// Thoughts returns a copy of the chain in submission order.
func (e *Engine) Thoughts() []models.Thought {
	out := make([]models.Thought, len(e.thoughts))
	copy(out, e.thoughts)
	return out
}

// Thought returns the entry with the given 1-based seq.
func (e *Engine) Thought(seq int) (models.Thought, bool) {
	if seq < 1 || seq > len(e.thoughts) {
		return models.Thought{}, false
	}
	return e.thoughts[seq-1], true
}

// Branches returns the branch index in creation order.
func (e *Engine) Branches() []models.Branch {
	out := make([]models.Branch, 0, len(e.order))
	for _, id := range e.order {
		b := e.branches[id]
		out = append(out, models.Branch{
			ID:         b.id,
			ForkNumber: b.forkNumber,
			ForkSeq:    b.forkSeq,
			ParentID:   b.parent,
			Members:    append([]int(nil), b.members...),
		})
	}
	return out
}

// Lineage returns the thoughts of a branch as rendered: the parent's
// entries numbered at or below the fork point, then the branch's own
// entries. The main line is MainBranch.
func (e *Engine) Lineage(branchID string) ([]models.Thought, bool) {
	if branchID != models.MainBranch {
		if _, ok := e.branches[branchID]; !ok {
			return nil, false
		}
	}
	seqs := e.lineage(branchID)
	out := make([]models.Thought, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, e.thoughts[seq-1])
	}
	return out, true
}

// lineage terminates because a branch's parent always predates it.
func (e *Engine) lineage(branchID string) []int {
	if branchID == models.MainBranch {
		var seqs []int
		for _, t := range e.thoughts {
			if t.OnMainLine() {
				seqs = append(seqs, t.Seq)
			}
		}
		return seqs
	}
	b := e.branches[branchID]
	var seqs []int
	for _, seq := range e.lineage(b.parent) {
		if e.thoughts[seq-1].Number <= b.forkNumber {
			seqs = append(seqs, seq)
		}
	}
	return append(seqs, b.members...)
}

// Summary returns the session metadata after the last submission.
func (e *Engine) Summary() models.SessionSummary {
	state := models.SessionActive
	if !e.active {
		state = models.SessionDone
	}
	return models.SessionSummary{
		CurrentTotalEstimate: e.estimate,
		HighestNumber:        e.highest,
		Active:               e.active,
		State:                state,
		BranchID:             e.lastBranch,
		ChainLength:          len(e.thoughts),
		Branches:             append([]string{}, e.order...),
		EarlyTermination:     e.earlyStop,
	}
}
