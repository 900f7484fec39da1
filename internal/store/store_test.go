package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewiki-dev/codewiki/internal/model"
	"github.com/codewiki-dev/codewiki/internal/store"
)

func chunkFixture(id, file, name string) model.CodeChunk {
	return model.CodeChunk{
		ID:        id,
		FilePath:  file,
		Language:  model.LanguagePython,
		ChunkType: model.ChunkTypeFunction,
		Name:      name,
		Content:   "def " + name + "(): pass",
		StartLine: 1,
		EndLine:   1,
		Metadata:  map[string]any{},
	}
}

func unitVec(dims int, hot int) []float32 {
	v := make([]float32, dims)
	v[hot%dims] = 1
	return v
}

func TestAddAndSearchRoundTrip(t *testing.T) {
	s, err := store.Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	chunks := []model.CodeChunk{
		chunkFixture("a", "x.py", "alpha"),
		chunkFixture("b", "x.py", "beta"),
	}
	vectors := [][]float32{unitVec(4, 0), unitVec(4, 1)}
	require.NoError(t, s.AddChunks(ctx, chunks, vectors))

	results, err := s.Search(ctx, unitVec(4, 0), store.SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "alpha", results[0].Chunk.Name)
}

func TestSearchAppliesScalarFilters(t *testing.T) {
	s, err := store.Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	c := chunkFixture("a", "x.py", "alpha")
	c.ChunkType = model.ChunkTypeClass
	require.NoError(t, s.AddChunks(ctx, []model.CodeChunk{c}, [][]float32{unitVec(4, 0)}))

	results, err := s.Search(ctx, unitVec(4, 0), store.SearchOptions{Limit: 10, ChunkType: model.ChunkTypeFunction})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search(ctx, unitVec(4, 0), store.SearchOptions{Limit: 10, ChunkType: model.ChunkTypeClass})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSanitizeScalarRejectsInvalidFilterGoesEmpty(t *testing.T) {
	s, err := store.Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	c := chunkFixture("a", "x.py", "alpha")
	require.NoError(t, s.AddChunks(ctx, []model.CodeChunk{c}, [][]float32{unitVec(4, 0)}))

	results, err := s.Search(ctx, unitVec(4, 0), store.SearchOptions{
		Limit:    10,
		Language: model.Language("python'; DROP TABLE chunks; --"),
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteChunksByFileRemovesFromAllIndexes(t *testing.T) {
	s, err := store.Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	chunks := []model.CodeChunk{chunkFixture("a", "x.py", "alpha"), chunkFixture("b", "y.py", "beta")}
	require.NoError(t, s.AddChunks(ctx, chunks, [][]float32{unitVec(4, 0), unitVec(4, 1)}))

	deleted, err := s.DeleteChunksByFile(ctx, "x.py")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a"}, deleted)

	_, ok, err := s.GetChunkByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := s.GetChunksByFile(ctx, "y.py")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	results, err := s.Search(ctx, unitVec(4, 0), store.SearchOptions{Limit: 10})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.Chunk.ID)
	}
}

func TestDimensionMismatchError(t *testing.T) {
	s, err := store.Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	err = s.AddChunks(ctx, []model.CodeChunk{chunkFixture("a", "x.py", "alpha")}, [][]float32{{1, 2, 3}})
	require.Error(t, err)
	var dimErr store.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)
}

func TestHybridSearchFusesSemanticAndLexical(t *testing.T) {
	s, err := store.Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	c1 := chunkFixture("a", "x.py", "parseRequestHandler")
	c2 := chunkFixture("b", "y.py", "unrelatedThing")
	require.NoError(t, s.AddChunks(ctx, []model.CodeChunk{c1, c2}, [][]float32{unitVec(4, 0), unitVec(4, 2)}))

	results, err := s.HybridSearch(ctx, unitVec(4, 2), "parse request handler", store.SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestHybridSearchWithBleveBackendFusesResults(t *testing.T) {
	s, err := store.OpenWithBackend(t.TempDir(), 4, "bleve")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	c1 := chunkFixture("a", "x.py", "parseRequestHandler")
	c2 := chunkFixture("b", "y.py", "unrelatedThing")
	require.NoError(t, s.AddChunks(ctx, []model.CodeChunk{c1, c2}, [][]float32{unitVec(4, 0), unitVec(4, 2)}))

	results, err := s.HybridSearch(ctx, unitVec(4, 2), "parse request handler", store.SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestStatsReportsRowAndFileCounts(t *testing.T) {
	s, err := store.Open(t.TempDir(), 4)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	chunks := []model.CodeChunk{chunkFixture("a", "x.py", "alpha"), chunkFixture("b", "x.py", "beta")}
	require.NoError(t, s.AddChunks(ctx, chunks, [][]float32{unitVec(4, 0), unitVec(4, 1)}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RowCount)
	assert.Equal(t, 1, stats.UniqueFiles)
}
