package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo is the index health snapshot the `status` command renders.
type StatusInfo struct {
	ProjectName string    `json:"project_name"`
	TotalFiles  int       `json:"total_files"`
	TotalChunks int       `json:"total_chunks"`
	LastIndexed time.Time `json:"last_indexed"`

	MetadataSize int64 `json:"metadata_size"`
	BM25Size     int64 `json:"bm25_size"`
	VectorSize   int64 `json:"vector_size"`
	TotalSize    int64 `json:"total_size"`

	EmbedderType   string `json:"embedder_type"`
	EmbedderStatus string `json:"embedder_status"` // "ready", "offline", "error"
	EmbedderModel  string `json:"embedder_model,omitempty"`
	WatcherStatus  string `json:"watcher_status"` // "running", "stopped", "n/a"
}

// StatusRenderer renders a StatusInfo either as a human-readable report
// or as JSON.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes a human-readable status report to out.
func (r *StatusRenderer) Render(info StatusInfo) error {
	fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.ProjectName))

	fmt.Fprintf(r.out, "  Files:        %d\n", info.TotalFiles)
	fmt.Fprintf(r.out, "  Chunks:       %d\n", info.TotalChunks)
	if !info.LastIndexed.IsZero() {
		fmt.Fprintf(r.out, "  Last indexed: %s\n", relativeTime(info.LastIndexed))
	}
	fmt.Fprintln(r.out)

	fmt.Fprintln(r.out, "  Storage:")
	fmt.Fprintf(r.out, "    Metadata:   %s\n", FormatBytes(info.MetadataSize))
	fmt.Fprintf(r.out, "    BM25 Index: %s\n", FormatBytes(info.BM25Size))
	fmt.Fprintf(r.out, "    Vectors:    %s\n", FormatBytes(info.VectorSize))
	fmt.Fprintf(r.out, "    Total:      %s\n", FormatBytes(info.TotalSize))
	fmt.Fprintln(r.out)

	fmt.Fprintln(r.out, "  Embedder:")
	fmt.Fprintf(r.out, "    Type:   %s\n", info.EmbedderType)
	fmt.Fprintf(r.out, "    Status: %s\n", r.renderStatusWord(info.EmbedderStatus))
	if info.EmbedderModel != "" {
		fmt.Fprintf(r.out, "    Model:  %s\n", info.EmbedderModel)
	}
	fmt.Fprintln(r.out)

	if info.WatcherStatus != "" && info.WatcherStatus != "n/a" {
		fmt.Fprintf(r.out, "  Watcher: %s\n", r.renderStatusWord(info.WatcherStatus))
	}

	return nil
}

// RenderJSON writes info as indented JSON, for `status --json`.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatusWord colors a status word by what it means: green for
// healthy, yellow for offline/stopped, red for error.
func (r *StatusRenderer) renderStatusWord(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// relativeTime renders t as "just now" / "N minutes ago" / etc, falling
// back to an absolute timestamp past a week old.
func relativeTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralAgo(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralAgo(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralAgo(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func pluralAgo(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatBytes renders a byte count in human-readable units (B/KB/MB/GB).
func FormatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
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
