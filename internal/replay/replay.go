// Package replay feeds a JSONL transcript of tool arguments through a fresh
// reasoning chain and prints every render, for inspecting recorded sessions
// offline.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fastertools/ftl-tool-think/internal/chain"
	"github.com/fastertools/ftl-tool-think/internal/tools"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// Options controls a replay.
type Options struct {
	Policy chain.DuplicatePolicy
	// Strict stops at the first rejected line.
	Strict bool
	// JSON prints each rendered step as a JSON object instead of text.
	JSON bool
	// Styled colours the text render for a terminal.
	Styled bool
}

// Stats summarises a replay.
type Stats struct {
	Lines    int
	Accepted int
	Rejected int
}

// LineError is a rejected transcript line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#20B9B4")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16858E"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
)

// Run replays every non-blank line of r. Blank lines and lines starting
// with # are skipped.
func Run(r io.Reader, w io.Writer, opts Options) (Stats, error) {
	var stats Stats
	engine := chain.New(chain.WithDuplicatePolicy(opts.Policy))

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		stats.Lines++

		out, err := submitLine(engine, line)
		if err == nil {
			stats.Accepted++
			if err := emit(w, out, opts); err != nil {
				return stats, err
			}
			continue
		}

		stats.Rejected++
		lerr := &LineError{Line: lineNo, Err: err}
		if opts.Strict {
			return stats, lerr
		}
		msg := "✗ " + lerr.Error()
		if opts.Styled {
			msg = errorStyle.Render(msg)
		}
		if _, err := fmt.Fprintln(w, msg); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read transcript: %w", err)
	}
	return stats, nil
}

func submitLine(engine *chain.Engine, line []byte) (*models.RenderedStep, error) {
	in, err := tools.DecodeThoughtInput(line)
	if err != nil {
		return nil, err
	}
	return engine.Submit(in)
}

func emit(w io.Writer, step *models.RenderedStep, opts Options) error {
	if opts.JSON {
		return json.NewEncoder(w).Encode(step)
	}
	text := step.Text
	if opts.Styled {
		text = Style(text)
	}
	_, err := fmt.Fprintf(w, "%s\n\n", text)
	return err
}

// Style colours a plain render line by line.
func Style(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = headerStyle.Render(line)
		case strings.HasPrefix(line, "──"):
			lines[i] = ruleStyle.Render(line)
		case strings.HasPrefix(line, "→ "):
			lines[i] = currentStyle.Render(line)
		case strings.HasPrefix(line, "Status:"):
			lines[i] = statusStyle.Render(line)
		case strings.HasPrefix(line, "⚠"):
			lines[i] = warnStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
