package chain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fastertools/ftl-tool-think/pkg/models"
)

const (
	rule           = "────────────────────────────────────────"
	lineagePreview = 72
)

// BranchLabel is the display name of a branch id.
func BranchLabel(id string) string {
	if id == models.MainBranch {
		return "main"
	}
	return id
}

func (e *Engine) render(t models.Thought) *models.RenderedStep {
	summary := e.Summary()
	lineage := e.lineage(t.BranchID)

	var b strings.Builder
	b.WriteString(e.header(t, summary))
	b.WriteString("\n")
	if meta := annotations(t); meta != "" {
		b.WriteString(meta)
		b.WriteString("\n")
	}
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(strings.TrimRight(t.Text, "\n"))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Lineage (%s):\n", lineageTitle(t))
	for _, seq := range lineage {
		entry := e.thoughts[seq-1]
		marker := "  "
		if seq == t.Seq {
			marker = "→ "
		}
		b.WriteString(marker)
		b.WriteString(LineageLine(entry))
		b.WriteString("\n")
	}

	b.WriteString(StatusLine(summary))
	if summary.EarlyTermination {
		fmt.Fprintf(&b, "\n⚠ early termination: stopped at thought %d of an estimated %d",
			t.Number, summary.CurrentTotalEstimate)
	}

	return &models.RenderedStep{
		Text:    b.String(),
		Thought: t,
		Lineage: lineage,
		Summary: summary,
	}
}

func (e *Engine) header(t models.Thought, s models.SessionSummary) string {
	kind := "Thought"
	switch {
	case t.IsRevision:
		kind = "Revision"
	case !t.OnMainLine():
		kind = "Branch"
	}
	h := fmt.Sprintf("%s %d/%d [%s]", kind, t.Number, s.CurrentTotalEstimate, t.Type)
	if t.IsRevision {
		h += fmt.Sprintf(" · revises #%d", t.RevisesNumber)
	}
	if !t.OnMainLine() {
		h += fmt.Sprintf(" · branch %s from #%d", t.BranchID, t.BranchFrom)
	}
	if dup := len(e.byNumber[t.Number]); dup > 1 && !t.IsRevision {
		h += fmt.Sprintf(" · number #%d used %d times", t.Number, dup)
	}
	return h
}

func annotations(t models.Thought) string {
	var parts []string
	if t.Confidence != nil {
		parts = append(parts, fmt.Sprintf("confidence %.2f", *t.Confidence))
	}
	if t.Lens != "" {
		parts = append(parts, "lens: "+t.Lens)
	}
	if t.NeedsMore {
		parts = append(parts, "needs more thoughts")
	}
	return strings.Join(parts, " · ")
}

func lineageTitle(t models.Thought) string {
	if t.OnMainLine() {
		return "main"
	}
	return fmt.Sprintf("%s, forked from #%d", t.BranchID, t.BranchFrom)
}

// LineageLine renders one chain entry as a single transcript line.
func LineageLine(t models.Thought) string {
	line := fmt.Sprintf("#%d [%s] %s", t.Number, t.Type, preview(t.Text))
	if t.IsRevision {
		line += fmt.Sprintf(" (revises #%d)", t.RevisesNumber)
	}
	return line
}

// StatusLine renders the session summary.
func StatusLine(s models.SessionSummary) string {
	branches := "none"
	if len(s.Branches) > 0 {
		branches = strings.Join(s.Branches, ", ")
	}
	return fmt.Sprintf("Status: %s · estimate %d · branch %s · %d thoughts · branches: %s",
		s.State, s.CurrentTotalEstimate, BranchLabel(s.BranchID), s.ChainLength, branches)
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + " …"
	}
	if utf8.RuneCountInString(text) <= lineagePreview {
		return text
	}
	runes := []rune(text)
	return string(runes[:lineagePreview-1]) + "…"
}
