package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_StatusPrintsIconAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("🔍", "Checking embedder...")

	assert.Contains(t, buf.String(), "🔍")
	assert.Contains(t, buf.String(), "Checking embedder...")
}

func TestWriter_StatusIndentsWhenIconEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "no icon here")

	assert.Equal(t, "   no icon here\n", buf.String())
}

func TestWriter_Statusf(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Statusf("📂", "Found %d files in %s", 42, "/path/to/project")

	assert.Contains(t, buf.String(), "📂")
	assert.Contains(t, buf.String(), "Found 42 files in /path/to/project")
}

func TestWriter_Success(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Success("Index complete!")

	assert.Contains(t, buf.String(), "✅")
	assert.Contains(t, buf.String(), "Index complete!")
}

func TestWriter_Warning(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Warning("Embedder not available")

	assert.Contains(t, buf.String(), "⚠️")
	assert.Contains(t, buf.String(), "Embedder not available")
}

func TestWriter_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Error("Failed to connect")

	assert.Contains(t, buf.String(), "❌")
	assert.Contains(t, buf.String(), "Failed to connect")
}

func TestWriter_CodePrintsIndentedBlock(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code(`{"key": "value"}`)

	assert.Contains(t, buf.String(), `{"key": "value"}`)
}

func TestWriter_ProgressPrintsBarAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Progress(50, 100, "Indexing files")

	assert.Contains(t, buf.String(), "50%")
	assert.Contains(t, buf.String(), "Indexing files")
}

func TestWriter_ProgressZeroTotalDoesNotPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)
	assert.NotPanics(t, func() { w.Progress(0, 0, "Processing") })
}

func TestWriter_Newline(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Newline()

	assert.Equal(t, "\n", buf.String())
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int
	}{
		{"0 percent", 0, 100, 10, 0},
		{"50 percent", 50, 100, 10, 5},
		{"100 percent", 100, 100, 10, 10},
		{"25 percent", 25, 100, 20, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := progressBar(tt.current, tt.total, tt.width)
			assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestNewDefaultsUsable(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NotNil(t, New(buf))
}
