// Package ui drives the interactive progress display codewiki shows while
// indexing: a bubbletea-based panel on a real terminal (tui.go), and a
// line-oriented fallback for pipes, CI logs, and --no-tui (plain.go).
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies one phase of an indexing run.
type Stage int

const (
	StageScanning Stage = iota
	StageChunking
	StageEmbedding
	StageIndexing
	StageComplete
)

var stageNames = [...]string{"Scanning", "Chunking", "Embedding", "Indexing", "Complete"}
var stageIcons = [...]string{"SCAN", "CHUNK", "EMBED", "INDEX", "DONE"}

// String returns the human-readable stage name.
func (s Stage) String() string {
	if int(s) < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

// Icon returns the short stage label used by the plain-text renderer.
func (s Stage) Icon() string {
	if int(s) < 0 || int(s) >= len(stageIcons) {
		return "???"
	}
	return stageIcons[s]
}

// ProgressEvent is one step reported by the indexer's ProgressFunc.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent is a per-file failure or warning surfaced during indexing.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a finished indexing run for the renderer's
// final summary screen.
type CompletionStats struct {
	Files    int
	Chunks   int
	Duration time.Duration
	Errors   int
	Warnings int
}

// Renderer drives a progress display across one indexing run. Callers
// Start it before the first UpdateProgress and Stop it once Complete (or
// an early error) has been reported.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures which Renderer NewRenderer picks and how it behaves.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	SpinnerStyle string
	ProjectDir   string
}

// ConfigOption customizes a Config built by NewConfig.
type ConfigOption func(*Config)

func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

func WithSpinnerStyle(style string) ConfigOption {
	return func(c *Config) { c.SpinnerStyle = style }
}

// WithProjectDir sets the project path shown in the TUI header.
func WithProjectDir(dir string) ConfigOption {
	return func(c *Config) { c.ProjectDir = dir }
}

func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:       output,
		SpinnerStyle: "dots",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks a TUI renderer for an interactive terminal, and the
// plain-text renderer for non-TTY output, CI, or ForcePlain. It never
// returns a broken TUI renderer: any TUI init failure falls back to plain.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is a terminal file descriptor.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set, per https://no-color.org.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// ciEnvVars are checked to decide whether stdout is a CI log rather than
// an interactive terminal, even when it happens to be a TTY (e.g. under
// a pty-wrapping CI runner).
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}

func DetectCI() bool {
	for _, v := range ciEnvVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
