package lifecycle

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptNoEmbedder_SelectsShowInstall(t *testing.T) {
	var out bytes.Buffer
	choice, err := PromptNoEmbedder(&out, strings.NewReader("1\n"))

	require.NoError(t, err)
	assert.Equal(t, ChoiceShowInstall, choice)
}

func TestPromptNoEmbedder_SelectsOfflineMode(t *testing.T) {
	var out bytes.Buffer
	choice, err := PromptNoEmbedder(&out, strings.NewReader("2\n"))

	require.NoError(t, err)
	assert.Equal(t, ChoiceOfflineMode, choice)
}

func TestPromptNoEmbedder_SelectsCancel(t *testing.T) {
	var out bytes.Buffer
	choice, err := PromptNoEmbedder(&out, strings.NewReader("3\n"))

	require.NoError(t, err)
	assert.Equal(t, ChoiceCancel, choice)
}

func TestPromptNoEmbedder_EmptyInputDefaultsToShowInstall(t *testing.T) {
	var out bytes.Buffer
	choice, err := PromptNoEmbedder(&out, strings.NewReader("\n"))

	require.NoError(t, err)
	assert.Equal(t, ChoiceShowInstall, choice)
}

func TestPromptNoEmbedder_InvalidInputReturnsError(t *testing.T) {
	var out bytes.Buffer
	choice, err := PromptNoEmbedder(&out, strings.NewReader("invalid\n"))

	assert.Error(t, err)
	assert.Equal(t, ChoiceCancel, choice)
}

func TestPromptNoEmbedder_ListsAllThreeChoices(t *testing.T) {
	var out bytes.Buffer
	_, err := PromptNoEmbedder(&out, strings.NewReader("1\n"))
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "Ollama is required")
	assert.Contains(t, output, "[1]")
	assert.Contains(t, output, "[2]")
	assert.Contains(t, output, "[3]")
}

func TestPromptModelNotFound_Pull(t *testing.T) {
	var out bytes.Buffer
	pull, err := PromptModelNotFound(&out, strings.NewReader("1\n"), "test-model")

	require.NoError(t, err)
	assert.True(t, pull)
}

func TestPromptModelNotFound_Cancel(t *testing.T) {
	var out bytes.Buffer
	pull, err := PromptModelNotFound(&out, strings.NewReader("2\n"), "test-model")

	require.NoError(t, err)
	assert.False(t, pull)
}

func TestPromptModelNotFound_EmptyInputDefaultsToPull(t *testing.T) {
	var out bytes.Buffer
	pull, err := PromptModelNotFound(&out, strings.NewReader("\n"), "test-model")

	require.NoError(t, err)
	assert.True(t, pull)
}

func TestShowInstallInstructions_MentionsOllamaDotCom(t *testing.T) {
	var out bytes.Buffer
	ShowInstallInstructions(&out)

	output := out.String()
	assert.NotEmpty(t, output)
	assert.Contains(t, output, "ollama.com")
}

func TestProgressBar_UpdateDrawsFilledBar(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out, 20)

	bar.Update(50, "testing")

	output := out.String()
	assert.Contains(t, output, "50%")
	assert.Contains(t, output, "█")
}

func TestProgressBar_ZeroWidthDefaultsTo40(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out, 0)

	bar.Update(100, "done")

	assert.Equal(t, 40, bar.width)
}

func TestProgressBar_FinishEndsWithNewline(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out, 20)

	bar.Update(100, "done")
	bar.Finish()

	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestFormatBytes_ScalesToLargestUnit(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1572864, "1.5 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}

func TestCreatePullProgressFunc_DrawsBarWhenTotalKnown(t *testing.T) {
	var out bytes.Buffer
	progressFunc := CreatePullProgressFunc(&out)

	progressFunc(PullProgress{Status: "downloading", Total: 1024 * 1024, Completed: 512 * 1024, Percent: 50})

	assert.Contains(t, out.String(), "50%")
}

func TestCreatePullProgressFunc_PrintsStatusWhenTotalUnknown(t *testing.T) {
	var out bytes.Buffer
	progressFunc := CreatePullProgressFunc(&out)

	progressFunc(PullProgress{Status: "pulling manifest", Total: 0})

	assert.Contains(t, out.String(), "pulling manifest")
}

func TestPromptChoice_ValuesAreDistinctAndStartAtOne(t *testing.T) {
	choices := []PromptChoice{ChoiceShowInstall, ChoiceOfflineMode, ChoiceCancel}
	seen := make(map[PromptChoice]bool, len(choices))
	for _, c := range choices {
		assert.False(t, seen[c], "duplicate choice value: %d", c)
		seen[c] = true
	}

	assert.Equal(t, PromptChoice(1), ChoiceShowInstall)
}
