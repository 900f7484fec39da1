package lifecycle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PromptChoice is the option a user picked from an interactive prompt.
type PromptChoice int

const (
	// ChoiceShowInstall asks for install instructions before retrying.
	ChoiceShowInstall PromptChoice = iota + 1
	// ChoiceOfflineMode continues with BM25-only search, no embedder.
	ChoiceOfflineMode
	// ChoiceCancel aborts the operation.
	ChoiceCancel
)

// IsTTY reports whether stdin is an interactive terminal.
func IsTTY() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// readChoice reads one line from r, trims it, and falls back to def when the
// line is empty.
func readChoice(r io.Reader, def string) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// PromptNoEmbedder asks the user how to proceed when Ollama isn't installed.
func PromptNoEmbedder(w io.Writer, r io.Reader) (PromptChoice, error) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Ollama is required for semantic search but not installed.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  [1] Show install instructions (then retry)")
	fmt.Fprintln(w, "  [2] Use offline mode (BM25-only, no semantic search)")
	fmt.Fprintln(w, "  [3] Cancel")
	fmt.Fprintln(w, "")
	fmt.Fprint(w, "Choice [1]: ")

	choice, err := readChoice(r, "1")
	if err != nil {
		return ChoiceCancel, err
	}

	switch choice {
	case "1":
		return ChoiceShowInstall, nil
	case "2":
		return ChoiceOfflineMode, nil
	case "3":
		return ChoiceCancel, nil
	default:
		return ChoiceCancel, fmt.Errorf("invalid choice: %s", choice)
	}
}

// ShowInstallInstructions prints platform-specific Ollama install steps.
func ShowInstallInstructions(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, InstallInstructions())
	fmt.Fprintln(w, "")
}

// PromptModelNotFound asks whether to pull a missing embedding model. It
// returns true when the user chose to pull.
func PromptModelNotFound(w io.Writer, r io.Reader, model string) (bool, error) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Embedding model '%s' is not installed.\n", model)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  [1] Pull model now (recommended)")
	fmt.Fprintln(w, "  [2] Cancel")
	fmt.Fprintln(w, "")
	fmt.Fprint(w, "Choice [1]: ")

	choice, err := readChoice(r, "1")
	if err != nil {
		return false, err
	}
	return choice == "1", nil
}

// ProgressBar renders a terminal progress bar that overwrites itself via \r.
type ProgressBar struct {
	w       io.Writer
	width   int
	current float64
	message string
}

// NewProgressBar creates a progress bar width characters wide (40 if
// width <= 0).
func NewProgressBar(w io.Writer, width int) *ProgressBar {
	if width <= 0 {
		width = 40
	}
	return &ProgressBar{w: w, width: width}
}

// Update redraws the bar at percent (0-100) with the given status message.
func (p *ProgressBar) Update(percent float64, message string) {
	p.current = percent
	p.message = message

	filled := int(percent / 100 * float64(p.width))
	if filled > p.width {
		filled = p.width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	fmt.Fprintf(p.w, "\r[%s] %.0f%% %s", bar, percent, message)
}

// Finish writes a trailing newline so subsequent output starts on its own line.
func (p *ProgressBar) Finish() {
	fmt.Fprintln(p.w)
}

// FormatBytes renders a byte count using the largest fitting unit (B/KB/MB/GB).
func FormatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// CreatePullProgressFunc builds a PullProgress callback that draws a
// progress bar while a total size is known, and otherwise prints the
// status string as it changes.
func CreatePullProgressFunc(w io.Writer) func(PullProgress) {
	bar := NewProgressBar(w, 40)
	lastStatus := ""

	return func(p PullProgress) {
		if p.Total > 0 {
			bar.Update(p.Percent, fmt.Sprintf("%s/%s", FormatBytes(p.Completed), FormatBytes(p.Total)))
			return
		}
		if p.Status != lastStatus {
			lastStatus = p.Status
			fmt.Fprintf(w, "\r%s...", p.Status)
		}
	}
}
