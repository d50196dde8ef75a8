package chain_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/ftl-tool-think/internal/chain"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

func intp(v int) *int           { return &v }
func boolp(v bool) *bool        { return &v }
func floatp(v float64) *float64 { return &v }

func step(text string, number, total int, next bool) models.ThoughtInput {
	return models.ThoughtInput{
		Thought:           text,
		ThoughtNumber:     number,
		TotalThoughts:     total,
		NextThoughtNeeded: boolp(next),
	}
}

func newEngine(t *testing.T, opts ...chain.Option) *chain.Engine {
	t.Helper()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return chain.New(append([]chain.Option{chain.WithClock(func() time.Time { return fixed })}, opts...)...)
}

func mustSubmit(t *testing.T, e *chain.Engine, in models.ThoughtInput) *models.RenderedStep {
	t.Helper()
	out, err := e.Submit(in)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func requireKind(t *testing.T, err error, kind chain.Kind) *chain.ValidationError {
	t.Helper()
	require.Error(t, err)
	ve, ok := chain.AsValidationError(err)
	require.True(t, ok, "expected *ValidationError, got %T", err)
	require.Equal(t, kind, ve.Kind)
	return ve
}

// ─── Scenarios ───────────────────────────────────────────────

func TestScenarios(t *testing.T) {
	e := newEngine(t)

	// A: first thought sets the estimate.
	a := mustSubmit(t, e, step("start", 1, 3, true))
	assert.Equal(t, 3, a.Summary.CurrentTotalEstimate)
	assert.Equal(t, models.SessionActive, a.Summary.State)
	assert.True(t, a.Summary.Active)

	// B: a revision is a new entry carrying the back-reference.
	rev := step("revise step1", 2, 3, true)
	rev.IsRevision = true
	rev.RevisesThought = intp(1)
	b := mustSubmit(t, e, rev)
	assert.Equal(t, 2, e.Len())
	assert.True(t, b.Thought.IsRevision)
	assert.Equal(t, 1, b.Thought.RevisesSeq)
	assert.Contains(t, b.Text, "revises #1")

	// C: a branch registers in the index with its fork point.
	br := step("explore alt", 3, 3, true)
	br.BranchFromThought = intp(1)
	br.BranchID = "alt"
	c := mustSubmit(t, e, br)
	branches := e.Branches()
	require.Len(t, branches, 1)
	assert.Equal(t, "alt", branches[0].ID)
	assert.Equal(t, 1, branches[0].ForkNumber)
	assert.Equal(t, 1, branches[0].ForkSeq)
	assert.Equal(t, []int{3}, branches[0].Members)
	assert.Equal(t, []int{1, 3}, c.Lineage)
	assert.Equal(t, "alt", c.Summary.BranchID)

	// D: unknown revision target fails without touching the chain.
	bad := step("bad", 4, 4, true)
	bad.IsRevision = true
	bad.RevisesThought = intp(99)
	_, err := e.Submit(bad)
	requireKind(t, err, chain.KindUnknownReference)
	assert.True(t, errors.Is(err, chain.ErrUnknownReference))
	assert.Equal(t, 3, e.Len())
	assert.Equal(t, 3, e.Summary().CurrentTotalEstimate)

	// E: next_thought_needed=false completes the session.
	done := mustSubmit(t, e, step("final", 3, 3, false))
	assert.Equal(t, models.SessionDone, done.Summary.State)
	assert.False(t, done.Summary.Active)
	assert.False(t, done.Summary.EarlyTermination)
	assert.Equal(t, models.MainBranch, done.Summary.BranchID)
}

// ─── Validation ──────────────────────────────────────────────

func TestValidationOrder(t *testing.T) {
	e := newEngine(t)
	mustSubmit(t, e, step("seed", 1, 2, true))

	tests := []struct {
		name  string
		in    models.ThoughtInput
		kind  chain.Kind
		field string
	}{
		{
			name: "empty beats everything",
			in: models.ThoughtInput{
				Thought: "   ", ThoughtNumber: 0, Confidence: floatp(2),
				IsRevision: true, RevisesThought: intp(50),
			},
			kind: chain.KindEmptyThought, field: "thought",
		},
		{
			name: "confidence beats references",
			in: models.ThoughtInput{
				Thought: "x", ThoughtNumber: 0, Confidence: floatp(1.5),
				IsRevision: true, RevisesThought: intp(50),
			},
			kind: chain.KindConfidenceRange, field: "confidence",
		},
		{
			name: "revision reference beats branch reference",
			in: models.ThoughtInput{
				Thought: "x", ThoughtNumber: 0,
				IsRevision: true, RevisesThought: intp(50),
				BranchFromThought: intp(60),
			},
			kind: chain.KindUnknownReference, field: "revises_thought",
		},
		{
			name: "revision without target",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: 2, TotalThoughts: 2, IsRevision: true},
			kind: chain.KindUnknownReference, field: "revises_thought",
		},
		{
			name: "unknown fork point",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: 2, TotalThoughts: 2, BranchFromThought: intp(7), BranchID: "b"},
			kind: chain.KindUnknownReference, field: "branch_from_thought",
		},
		{
			name: "missing branch id beats number",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: 0, BranchFromThought: intp(1), BranchID: "  "},
			kind: chain.KindMissingBranchID, field: "branch_id",
		},
		{
			name: "unknown branch without fork",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: 2, TotalThoughts: 2, BranchID: "ghost"},
			kind: chain.KindUnknownReference, field: "branch_id",
		},
		{
			name: "non-positive number",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: -1, TotalThoughts: 2},
			kind: chain.KindInvalidNumber, field: "thought_number",
		},
		{
			name: "non-positive total",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: 2, TotalThoughts: 0},
			kind: chain.KindInvalidNumber, field: "total_thoughts",
		},
		{
			name: "number beats thought type",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: 0, TotalThoughts: 2, ThoughtType: "bogus"},
			kind: chain.KindInvalidNumber, field: "thought_number",
		},
		{
			name: "thought type outside the closed set",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: 2, TotalThoughts: 2, ThoughtType: "bogus"},
			kind: chain.KindInvalidThoughtType, field: "thought_type",
		},
		{
			name: "NaN confidence",
			in:   models.ThoughtInput{Thought: "x", ThoughtNumber: 2, TotalThoughts: 2, Confidence: floatp(math.NaN())},
			kind: chain.KindConfidenceRange, field: "confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := e.Thoughts()
			summary := e.Summary()

			// Same input twice must report the same failure.
			for i := 0; i < 2; i++ {
				_, err := e.Submit(tt.in)
				ve := requireKind(t, err, tt.kind)
				assert.Equal(t, tt.field, ve.Field)
			}
			assert.Equal(t, before, e.Thoughts())
			assert.Equal(t, summary, e.Summary())
		})
	}
}

func TestRevisionCannotPointForward(t *testing.T) {
	e := newEngine(t)
	mustSubmit(t, e, step("five", 5, 5, true))

	back := step("one revisits five", 1, 5, true)
	back.IsRevision = true
	back.RevisesThought = intp(5)
	_, err := e.Submit(back)
	ve := requireKind(t, err, chain.KindUnknownReference)
	assert.Equal(t, "revises_thought", ve.Field)
	assert.Equal(t, 1, e.Len())

	same := step("five again", 5, 5, true)
	same.IsRevision = true
	same.RevisesThought = intp(5)
	mustSubmit(t, e, same)

	later := step("six revisits five", 6, 6, true)
	later.IsRevision = true
	later.RevisesThought = intp(5)
	out := mustSubmit(t, e, later)
	assert.Equal(t, 2, out.Thought.RevisesSeq)
}

func TestThoughtTypeValidated(t *testing.T) {
	e := newEngine(t)

	in := step("odd", 1, 1, true)
	in.ThoughtType = "bogus"
	_, err := e.Submit(in)
	requireKind(t, err, chain.KindInvalidThoughtType)
	assert.True(t, errors.Is(err, chain.ErrInvalidThoughtType))
	assert.Equal(t, 0, e.Len())

	in.ThoughtType = " Critical "
	out := mustSubmit(t, e, in)
	assert.Equal(t, models.ThoughtCritical, out.Thought.Type)
}

func TestConfidenceBounds(t *testing.T) {
	e := newEngine(t)
	for i, c := range []float64{0, 0.5, 1} {
		in := step("ok", i+1, 3, true)
		in.Confidence = floatp(c)
		mustSubmit(t, e, in)
	}
	in := step("low", 4, 4, true)
	in.Confidence = floatp(-0.01)
	_, err := e.Submit(in)
	requireKind(t, err, chain.KindConfidenceRange)
	assert.ErrorIs(t, err, chain.ErrConfidenceRange)
}

// ─── Properties ──────────────────────────────────────────────

func TestAppendOnly(t *testing.T) {
	e := newEngine(t)
	var snapshots [][]models.Thought

	inputs := []models.ThoughtInput{
		step("one", 1, 3, true),
		{Thought: "two revises one", ThoughtNumber: 2, TotalThoughts: 3, NextThoughtNeeded: boolp(true), IsRevision: true, RevisesThought: intp(1)},
		{Thought: "branch", ThoughtNumber: 3, TotalThoughts: 3, NextThoughtNeeded: boolp(true), BranchFromThought: intp(2), BranchID: "b"},
		step("dup one", 1, 3, true),
		step("done", 4, 4, false),
	}
	for _, in := range inputs {
		mustSubmit(t, e, in)
		snapshots = append(snapshots, e.Thoughts())
	}

	final := e.Thoughts()
	for i, snap := range snapshots {
		require.Equal(t, snap, final[:len(snap)], "snapshot %d diverged", i)
	}
	for i, th := range final {
		assert.Equal(t, i+1, th.Seq)
		assert.Equal(t, inputs[i].Thought, th.Text)
	}

	// Returned slices are copies.
	final[0].Text = "mutated"
	got, ok := e.Thought(1)
	require.True(t, ok)
	assert.Equal(t, "one", got.Text)
}

func TestMonotonicEstimate(t *testing.T) {
	e := newEngine(t)
	seq := []struct{ number, total int }{
		{1, 5}, {2, 2}, {7, 3}, {3, 1}, {8, 10}, {9, 4},
	}
	prev, highest := 0, 0
	for _, s := range seq {
		out := mustSubmit(t, e, step("t", s.number, s.total, true))
		highest = max(highest, s.number)
		est := out.Summary.CurrentTotalEstimate
		assert.GreaterOrEqual(t, est, highest)
		assert.GreaterOrEqual(t, est, prev)
		prev = est
	}
	assert.Equal(t, 10, prev)
	assert.Equal(t, 9, e.Summary().HighestNumber)
}

func TestNeedsMoreRaisesEstimate(t *testing.T) {
	e := newEngine(t)
	mustSubmit(t, e, step("a", 1, 2, true))

	in := step("b", 2, 2, true)
	in.NeedsMoreThoughts = true
	out := mustSubmit(t, e, in)
	assert.Equal(t, 3, out.Summary.CurrentTotalEstimate)
	assert.Contains(t, out.Text, "needs more thoughts")

	// Below the estimate the flag leaves it alone.
	in = step("c", 1, 1, true)
	in.NeedsMoreThoughts = true
	out = mustSubmit(t, e, in)
	assert.Equal(t, 3, out.Summary.CurrentTotalEstimate)
}

func TestEstimateSaturatesAtLargestNumber(t *testing.T) {
	e := newEngine(t)
	in := step("huge", math.MaxInt, math.MaxInt, true)
	in.NeedsMoreThoughts = true
	out := mustSubmit(t, e, in)

	assert.Equal(t, math.MaxInt, out.Summary.CurrentTotalEstimate)
	assert.GreaterOrEqual(t, out.Summary.CurrentTotalEstimate, out.Summary.HighestNumber)

	out = mustSubmit(t, e, in)
	assert.Equal(t, math.MaxInt, out.Summary.CurrentTotalEstimate)
}

func TestEarlyTerminationIsFlagged(t *testing.T) {
	e := newEngine(t)
	mustSubmit(t, e, step("a", 1, 5, true))
	out := mustSubmit(t, e, step("stop", 2, 5, false))

	assert.Equal(t, models.SessionDone, out.Summary.State)
	assert.True(t, out.Summary.EarlyTermination)
	assert.Contains(t, out.Text, "early termination")
	assert.Contains(t, out.Text, "thought 2 of an estimated 5")
}

func TestReopenAfterDone(t *testing.T) {
	e := newEngine(t)
	mustSubmit(t, e, step("a", 1, 1, false))
	assert.Equal(t, models.SessionDone, e.Summary().State)

	out := mustSubmit(t, e, step("actually", 2, 2, true))
	assert.Equal(t, models.SessionActive, out.Summary.State)
	assert.False(t, out.Summary.EarlyTermination)

	out = mustSubmit(t, e, step("again", 3, 3, false))
	assert.Equal(t, models.SessionDone, out.Summary.State)
}

// ─── Branches ────────────────────────────────────────────────

func TestNestedBranchLineage(t *testing.T) {
	e := newEngine(t)
	mustSubmit(t, e, step("m1", 1, 5, true))
	mustSubmit(t, e, step("m2", 2, 5, true))
	mustSubmit(t, e, step("m3", 3, 5, true))

	a := step("a3", 3, 5, true)
	a.BranchFromThought = intp(2)
	a.BranchID = "a"
	mustSubmit(t, e, a) // seq 4
	a4 := step("a4", 4, 5, true)
	a4.BranchID = "a"
	joined := mustSubmit(t, e, a4) // seq 5, joins without restating the fork
	assert.Equal(t, 2, joined.Thought.BranchFrom)

	b := step("b5", 5, 5, true)
	b.BranchFromThought = intp(4)
	b.BranchID = "b"
	out := mustSubmit(t, e, b) // seq 6, forks from a

	assert.Equal(t, []int{1, 2, 4, 5, 6}, out.Lineage)

	branches := e.Branches()
	require.Len(t, branches, 2)
	assert.Equal(t, "a", branches[0].ID)
	assert.Equal(t, models.MainBranch, branches[0].ParentID)
	assert.Equal(t, []int{4, 5}, branches[0].Members)
	assert.Equal(t, "b", branches[1].ID)
	assert.Equal(t, "a", branches[1].ParentID)
	assert.Equal(t, 5, branches[1].ForkSeq)

	main, ok := e.Lineage(models.MainBranch)
	require.True(t, ok)
	assert.Len(t, main, 3)

	_, ok = e.Lineage("nope")
	assert.False(t, ok)
}

func TestCrossBranchRevisionKeepsOwnBranch(t *testing.T) {
	e := newEngine(t)
	mustSubmit(t, e, step("m1", 1, 3, true))
	br := step("alt2", 2, 3, true)
	br.BranchFromThought = intp(1)
	br.BranchID = "alt"
	mustSubmit(t, e, br)

	rev := step("main revisits alt", 3, 3, true)
	rev.IsRevision = true
	rev.RevisesThought = intp(2)
	out := mustSubmit(t, e, rev)

	assert.True(t, out.Thought.OnMainLine())
	assert.Equal(t, 2, out.Thought.RevisesSeq)
	assert.Equal(t, []int{2}, e.Branches()[0].Members)
	assert.Equal(t, []int{1, 3}, out.Lineage)
}

// ─── Duplicate numbers ───────────────────────────────────────

func TestDuplicateNumbersPermitted(t *testing.T) {
	e := newEngine(t)
	mustSubmit(t, e, step("first take", 1, 2, true))
	out := mustSubmit(t, e, step("second take", 1, 2, true))

	assert.Equal(t, 2, e.Len())
	assert.False(t, out.Thought.IsRevision)
	assert.Contains(t, out.Text, "#1 [analytical] first take")
	assert.Contains(t, out.Text, "#1 [analytical] second take")
	assert.Contains(t, out.Text, "number #1 used 2 times")
}

func TestDuplicateNumbersRejected(t *testing.T) {
	e := newEngine(t, chain.WithDuplicatePolicy(chain.DuplicateReject))
	mustSubmit(t, e, step("first", 1, 2, true))

	_, err := e.Submit(step("again", 1, 2, true))
	requireKind(t, err, chain.KindDuplicateNumber)
	assert.Equal(t, 1, e.Len())

	// An explicit revision may reuse the number.
	rev := step("explicit", 1, 2, true)
	rev.IsRevision = true
	rev.RevisesThought = intp(1)
	mustSubmit(t, e, rev)
}

func TestDuplicateNumbersBecomeRevisions(t *testing.T) {
	e := newEngine(t, chain.WithDuplicatePolicy(chain.DuplicateRevise))
	mustSubmit(t, e, step("first", 1, 2, true))
	out := mustSubmit(t, e, step("again", 1, 2, true))

	assert.True(t, out.Thought.IsRevision)
	assert.Equal(t, 1, out.Thought.RevisesNumber)
	assert.Equal(t, 1, out.Thought.RevisesSeq)
	assert.Contains(t, out.Text, "revises #1")
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := chain.ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, chain.DuplicatePermit, p)

	p, err = chain.ParseDuplicatePolicy(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, chain.DuplicateReject, p)

	_, err = chain.ParseDuplicatePolicy("merge")
	assert.Error(t, err)
}

func TestThoughtDefaults(t *testing.T) {
	e := newEngine(t)
	in := step("typed", 1, 1, true)
	in.CustomLens = "  security "
	out := mustSubmit(t, e, in)

	assert.Equal(t, models.ThoughtAnalytical, out.Thought.Type)
	assert.Equal(t, "security", out.Thought.Lens)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), out.Thought.SubmittedAt)
	assert.Contains(t, out.Text, "lens: security")
}
