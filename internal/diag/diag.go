// Package diag implements the structured diagnostic model of spec §7:
// a TylDiagnosticError carries level, category code, message, span and
// optional suggestion/notes; the CLI driver is the only place that turns
// these into a process exit code.
package diag

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tyl-lang/tyl/internal/token"
)

// Level mirrors the severities spec §7 names.
type Level int

const (
	Note Level = iota
	Warning
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Fatal:
		return "fatal error"
	default:
		return "error"
	}
}

// Diagnostic is the structured record described in spec §7.
type Diagnostic struct {
	Level      Level
	Code       string // E0xxx .. E9xxx
	Message    string
	Span       token.Location
	Suggestion string
	Notes      []string
}

// Error implements the error interface so a Diagnostic can be threaded as a
// plain Go error through every stage, the way the teacher threads `error`
// out of TranslateUnit methods.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s[%s] %s", d.Span, d.Level, d.Code, d.Message)
}

// Bag collects diagnostics from lexer/parser error recovery (spec §7 policy:
// synchronise and continue so multiple errors are reported per run).
type Bag struct {
	items []Diagnostic
}

func NewBag() *Bag { return &Bag{} }

func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

func (b *Bag) Items() []Diagnostic { return b.items }

// HasErrors reports whether any Error or Fatal diagnostic was recorded; the
// driver refuses to advance to code generation when this is true.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Level == Error || d.Level == Fatal {
			return true
		}
	}
	return false
}

// Render prints each diagnostic as file:line:column, the offending source
// line, and a caret/underline, following the renderer contract in spec §7.
// source may be nil when the originating file is unavailable (e.g. a
// synthesised diagnostic about a different file, such as a circular import).
func (b *Bag) Render(w *bufio.Writer, source []byte) {
	lines := splitLines(source)
	for _, d := range b.items {
		fmt.Fprintf(w, "%s: %s[%s]: %s\n", d.Span, d.Level, d.Code, d.Message)
		if d.Span.Line >= 1 && d.Span.Line <= len(lines) {
			line := lines[d.Span.Line-1]
			fmt.Fprintf(w, "  %s\n", line)
			col := d.Span.Column
			if col < 1 {
				col = 1
			}
			fmt.Fprintf(w, "  %s^\n", strings.Repeat(" ", col-1))
		}
		if d.Suggestion != "" {
			fmt.Fprintf(w, "  help: %s\n", d.Suggestion)
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  note: %s\n", n)
		}
	}
	w.Flush()
}

func splitLines(src []byte) []string {
	if src == nil {
		return nil
	}
	return strings.Split(string(src), "\n")
}

// RenderToStderr is a convenience wrapper the CLI driver uses directly,
// matching the teacher's `fmt.Fprintln(os.Stderr, err)` error-reporting idiom.
func (b *Bag) RenderToStderr(source []byte) {
	w := bufio.NewWriter(os.Stderr)
	b.Render(w, source)
}

// CircularImport builds the diagnostic spec §4.4/§8 property 7 requires:
// message containing "Circular import" and enumerating the full chain.
func CircularImport(chain []string, at token.Location) Diagnostic {
	return Diagnostic{
		Level:   Error,
		Code:    "E3001",
		Message: fmt.Sprintf("Circular import detected: %s", strings.Join(chain, " -> ")),
		Span:    at,
	}
}
