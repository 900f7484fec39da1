// Package output renders the plain, non-interactive CLI messages codewiki
// prints outside of the bubbletea-driven progress UI in internal/ui: one-line
// status/success/warning/error lines and indented code blocks.
package output

import (
	"fmt"
	"io"
	"strings"
)

const (
	iconSuccess = "✅"
	iconWarning = "⚠️ "
	iconError   = "❌"
)

// Writer formats CLI output onto an io.Writer. Errors writing to out are
// intentionally swallowed: console output is best-effort, never the reason
// a command fails.
type Writer struct {
	out io.Writer
}

func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints an icon-prefixed line, or an indented line if icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

func (w *Writer) Success(msg string) { w.Status(iconSuccess, msg) }

func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

func (w *Writer) Warning(msg string) { w.Status(iconWarning, msg) }

func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

func (w *Writer) Error(msg string) { w.Status(iconError, msg) }

func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints content as an indented, blank-line-framed block.
func (w *Writer) Code(content string) {
	fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(w.out, "  %s\n", line)
	}
	fmt.Fprintln(w.out)
}

func (w *Writer) Newline() {
	fmt.Fprintln(w.out)
}

// Progress renders an ASCII progress bar in place via carriage return,
// moving to a fresh line once current reaches total.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", progressBar(current, total, 30), pct, msg)
	if current >= total {
		fmt.Fprintln(w.out)
	}
}

func (w *Writer) ProgressDone() {
	fmt.Fprintln(w.out)
}

func progressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := int(float64(current) / float64(total) * float64(width))
	switch {
	case filled > width:
		filled = width
	case filled < 0:
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
