package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewiki-dev/codewiki/internal/config"
	"github.com/codewiki-dev/codewiki/internal/embed"
	"github.com/codewiki-dev/codewiki/internal/index"
	"github.com/codewiki-dev/codewiki/internal/model"
	"github.com/codewiki-dev/codewiki/internal/store"
)

// Index + Search Integration Tests - these exercise the real Indexer,
// Store and Embedder wired together against files on disk, rather than
// hand-built store rows, so they catch wiring mistakes a unit test
// working against one package in isolation would miss.

func newTestIndexer(t *testing.T, root string) (*index.Indexer, *store.Store) {
	t.Helper()
	dataDir := filepath.Join(root, ".codewiki")
	embedder := embed.NewLocalEmbedder(64)
	vs, err := store.Open(filepath.Join(dataDir, "vectors"), embedder.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })

	cfg := index.Config{RootDir: root, DataDir: dataDir}
	return index.New(cfg, embedder, vs, 200), vs
}

func writeProjectFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

const widgetSource = `package widget

// NewWidget constructs a Widget with the given name.
func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}

type Widget struct {
	Name string
}
`

const gadgetSource = `package gadget

// Assemble builds a Gadget from its parts.
func Assemble(parts []string) *Gadget {
	return &Gadget{Parts: parts}
}

type Gadget struct {
	Parts []string
}
`

func TestIntegration_IndexAndSearch_FindsResults(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "widget.go", widgetSource)
	writeProjectFile(t, root, "gadget.go", gadgetSource)

	ix, vs := newTestIndexer(t, root)
	ctx := context.Background()
	result, err := ix.Index(ctx, true, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.Status.TotalFiles)

	embedder := embed.NewLocalEmbedder(64)
	queryVec, err := embedder.Embed(ctx, "Widget")
	require.NoError(t, err)

	hits, err := vs.HybridSearch(ctx, queryVec, "Widget", store.SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	foundWidget := false
	for _, h := range hits {
		if h.Chunk.FilePath == "widget.go" {
			foundWidget = true
		}
	}
	assert.True(t, foundWidget, "hybrid search should surface a chunk from widget.go")
}

func TestIntegration_SearchAfterDelete_ExcludesDeleted(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "widget.go", widgetSource)

	ix, vs := newTestIndexer(t, root)
	ctx := context.Background()
	_, err := ix.Index(ctx, true, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "widget.go")))
	result, err := ix.Index(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesDeleted)

	embedder := embed.NewLocalEmbedder(64)
	queryVec, err := embedder.Embed(ctx, "Widget")
	require.NoError(t, err)

	hits, err := vs.HybridSearch(ctx, queryVec, "Widget", store.SearchOptions{Limit: 5})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "widget.go", h.Chunk.FilePath, "deleted file's chunks must not surface in search")
	}
}

func TestIntegration_EmptyIndex_ReturnsNoResults(t *testing.T) {
	root := t.TempDir()
	ix, vs := newTestIndexer(t, root)
	ctx := context.Background()
	_, err := ix.Index(ctx, true, nil)
	require.NoError(t, err)

	embedder := embed.NewLocalEmbedder(64)
	queryVec, err := embedder.Embed(ctx, "anything")
	require.NoError(t, err)

	hits, err := vs.HybridSearch(ctx, queryVec, "anything", store.SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIntegration_SearchWithFilters_FiltersResults(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "widget.go", widgetSource)
	writeProjectFile(t, root, "script.py", "def widget():\n    return 'widget'\n")

	ix, vs := newTestIndexer(t, root)
	ctx := context.Background()
	_, err := ix.Index(ctx, true, nil)
	require.NoError(t, err)

	embedder := embed.NewLocalEmbedder(64)
	queryVec, err := embedder.Embed(ctx, "widget")
	require.NoError(t, err)

	hits, err := vs.HybridSearch(ctx, queryVec, "widget", store.SearchOptions{
		Limit:    10,
		Language: model.LanguageGo,
	})
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, model.LanguageGo, h.Chunk.Language)
	}
}

func TestIntegration_ConcurrentSearches_NoRace(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "widget.go", widgetSource)
	writeProjectFile(t, root, "gadget.go", gadgetSource)

	ix, vs := newTestIndexer(t, root)
	ctx := context.Background()
	_, err := ix.Index(ctx, true, nil)
	require.NoError(t, err)

	embedder := embed.NewLocalEmbedder(64)
	queryVec, err := embedder.Embed(ctx, "widget gadget")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = vs.HybridSearch(ctx, queryVec, "widget gadget", store.SearchOptions{Limit: 5})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestIntegration_ConfigLoad_AppliesDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Embeddings.Provider)
	assert.NotEmpty(t, cfg.LLM.Provider)
}

func TestIntegration_ConfigLoad_WithFile_OverridesDefaults(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, ".codewiki.yaml", "embeddings:\n  provider: ollama\n  model: custom-embed\n")

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "custom-embed", cfg.Embeddings.Model)
}
