package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_StringNamesEachStage(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageScanning, "Scanning"},
		{StageChunking, "Chunking"},
		{StageEmbedding, "Embedding"},
		{StageIndexing, "Indexing"},
		{StageComplete, "Complete"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stage.String())
		})
	}
}

func TestStage_StringOutOfRangeIsUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Stage(99).String())
}

func TestStage_IconAbbreviatesEachStage(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageScanning, "SCAN"},
		{StageChunking, "CHUNK"},
		{StageEmbedding, "EMBED"},
		{StageIndexing, "INDEX"},
		{StageComplete, "DONE"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stage.Icon())
		})
	}
}

func TestIsTTY_BufferIsNotATerminal(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestIsTTY_NilWriterIsNotATerminal(t *testing.T) {
	assert.False(t, IsTTY(nil))
}

func TestNewConfig_AppliesDefaults(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf)

	assert.NotNil(t, cfg.Output)
	assert.False(t, cfg.ForcePlain)
	assert.False(t, cfg.NoColor)
}

func TestNewConfig_OptionsOverrideDefaults(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf, WithForcePlain(true), WithNoColor(true))

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
}

func TestNewRenderer_ForcePlainYieldsPlainRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf, WithForcePlain(true))

	_, ok := NewRenderer(cfg).(*PlainRenderer)
	require.True(t, ok, "expected PlainRenderer")
}

func TestNewRenderer_NonTTYYieldsPlainRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := NewConfig(buf)

	_, ok := NewRenderer(cfg).(*PlainRenderer)
	require.True(t, ok, "expected PlainRenderer for non-TTY output")
}

func TestProgressEvent_FieldsRoundTrip(t *testing.T) {
	event := ProgressEvent{
		Stage:       StageScanning,
		Current:     50,
		Total:       100,
		CurrentFile: "src/main.go",
		Message:     "Processing...",
	}

	assert.Equal(t, StageScanning, event.Stage)
	assert.Equal(t, 50, event.Current)
	assert.Equal(t, 100, event.Total)
	assert.Equal(t, "src/main.go", event.CurrentFile)
	assert.Equal(t, "Processing...", event.Message)
}

func TestErrorEvent_IsWarnDistinguishesErrorsFromWarnings(t *testing.T) {
	warning := ErrorEvent{File: "broken.go", Err: assert.AnError, IsWarn: true}
	assert.True(t, warning.IsWarn)

	failure := ErrorEvent{File: "error.go", Err: assert.AnError}
	assert.False(t, failure.IsWarn)
}

func TestCompletionStats_ZeroValueHasNoCounts(t *testing.T) {
	stats := CompletionStats{}

	assert.Equal(t, 0, stats.Files)
	assert.Equal(t, 0, stats.Chunks)
	assert.Zero(t, stats.Duration)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 0, stats.Warnings)
}

func TestPlainRenderer_ImplementsRenderer(t *testing.T) {
	var _ Renderer = (*PlainRenderer)(nil)
}

func TestDetectNoColor_RespectsEnvVar(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestDetectNoColor_FalseWhenUnset(t *testing.T) {
	_ = os.Unsetenv("NO_COLOR")
	assert.False(t, DetectNoColor())
}

func TestDetectCI_RespectsEnvVar(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestDetectCI_FalseWhenUnset(t *testing.T) {
	for _, v := range ciEnvVars {
		_ = os.Unsetenv(v)
	}
	assert.False(t, DetectCI())
}
