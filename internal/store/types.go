// Package store implements the Vector Store of spec.md §4.3: chunk
// persistence, approximate nearest-neighbor search over embeddings, and
// scalar metadata filtering. A secondary hybrid lexical index (BM25 over
// FTS5) is layered on top as a domain-stack enrichment that combines with
// the ANN results via reciprocal rank fusion; it does not change the core
// contract below.
package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/codewiki-dev/codewiki/internal/model"
)

// CurrentSchemaVersion is bumped whenever the on-disk layout changes in a
// way that requires a full reindex rather than an in-place migration.
const CurrentSchemaVersion = 1

// Config configures the ANN engine embedded in a Store.
type Config struct {
	Dimensions     int
	Metric         string // "cos" or "l2"
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultConfig returns the HNSW parameters the teacher ships with,
// parameterized only by embedding dimensionality.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              16,
		EfConstruction: 200,
		EfSearch:       20,
	}
}

// ErrDimensionMismatch is returned when a vector's width disagrees with the
// store's configured Dimensions, almost always because the embedding model
// changed without a reindex.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf(
		"embedding dimension mismatch: store expects %d, got %d (run 'codewiki index --force' after changing embedding models)",
		e.Expected, e.Got,
	)
}

// VectorResult is one ANN hit before it has been joined back to scalar
// metadata.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// Stats summarizes a store's current contents.
type Stats struct {
	RowCount    int
	UniqueFiles int
}

// SearchOptions narrows a semantic search by the scalar predicates spec.md
// §4.3 requires: exact-match language and chunk type. Empty fields apply no
// filter.
type SearchOptions struct {
	Limit     int
	Language  model.Language
	ChunkType model.ChunkType
}

// VectorStore is the storage contract every search-facing component
// (indexer, research pipeline, CLI) depends on.
type VectorStore interface {
	// CreateOrUpdateTable prepares the store for a given embedding
	// dimensionality, erroring with ErrDimensionMismatch if it already
	// holds vectors of a different width.
	CreateOrUpdateTable(ctx context.Context, dimensions int) error

	// AddChunks inserts or replaces chunks and their embeddings. len(chunks)
	// must equal len(vectors).
	AddChunks(ctx context.Context, chunks []model.CodeChunk, vectors [][]float32) error

	// Search performs semantic search, returning up to opts.Limit results
	// ordered by descending score, joined with the scalar filters in opts.
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]model.SearchResult, error)

	// GetChunkByID returns the chunk stored under id, or ok=false if absent.
	GetChunkByID(ctx context.Context, id string) (model.CodeChunk, bool, error)

	// GetChunksByFile returns every chunk currently indexed for relPath.
	GetChunksByFile(ctx context.Context, relPath string) ([]model.CodeChunk, error)

	// DeleteChunksByFile removes every chunk indexed for relPath and
	// returns the deleted chunk IDs, so callers can also evict them from
	// auxiliary indexes (lexical, cache).
	DeleteChunksByFile(ctx context.Context, relPath string) ([]string, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// safeScalarValue is the sanitization rule from spec.md §4.3: scalar filter
// predicates (language, chunk type, file path) are validated against this
// allowlist before being interpolated into a query. A failed match means
// the caller must return an empty result set rather than execute anything.
var safeScalarValue = regexp.MustCompile(`^[A-Za-z0-9_./:\- ]{1,512}$`)

// SanitizeScalar reports whether v is safe to use as a scalar filter value.
func SanitizeScalar(v string) (ok bool) {
	return safeScalarValue.MatchString(v)
}
