package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codewiki-dev/codewiki/internal/model"
)

// rrfConstant is the k in reciprocal rank fusion: rrf(rank) = 1/(k+rank).
// 60 is the value the information-retrieval literature (and most hybrid
// search implementations) converge on; it flattens the curve enough that
// a single very high BM25 rank can't dominate a middling vector rank.
const rrfConstant = 60

// Store is the on-disk VectorStore implementation: an ANN index over
// embeddings, a SQLite table of scalar chunk fields, and a BM25 lexical
// index, all rooted under one directory inside .codewiki/.
type Store struct {
	dir     string
	ann     *annIndex
	scalar  *scalarStore
	lexical lexicalBackend
}

// Open creates or reopens a Store rooted at dir (typically
// ".codewiki/index/<submodule>"). dimensions is the embedding width the ANN
// index will enforce; pass 0 to defer sizing until the first AddChunks call
// via CreateOrUpdateTable. The lexical sub-index defaults to the sqlite/FTS5
// backend; use OpenWithBackend to select `search.bm25_backend: bleve`.
func Open(dir string, dimensions int) (*Store, error) {
	return OpenWithBackend(dir, dimensions, "sqlite")
}

// OpenWithBackend is Open with an explicit lexical backend ("sqlite" or
// "bleve", matching config.Config.Search.BM25Backend). An unrecognized
// value falls back to sqlite rather than erroring, so a typo in hand-edited
// config never blocks an index run.
func OpenWithBackend(dir string, dimensions int, backend string) (*Store, error) {
	cfg := DefaultConfig(dimensions)
	ann := newANNIndex(cfg)
	if err := ann.load(filepath.Join(dir, "vectors.hnsw")); err != nil {
		return nil, fmt.Errorf("load ann index: %w", err)
	}

	scalar, err := newScalarStore(filepath.Join(dir, "chunks.db"))
	if err != nil {
		return nil, fmt.Errorf("open scalar store: %w", err)
	}

	var lexical lexicalBackend
	if strings.EqualFold(backend, "bleve") {
		lexical, err = newBleveLexicalIndex(filepath.Join(dir, "bleve"))
	} else {
		lexical, err = newLexicalIndex(filepath.Join(dir, "lexical.db"))
	}
	if err != nil {
		_ = scalar.close()
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	return &Store{dir: dir, ann: ann, scalar: scalar, lexical: lexical}, nil
}

var _ VectorStore = (*Store)(nil)

// CreateOrUpdateTable sizes the ANN index for dimensions. If the store
// already holds vectors of a different width, it refuses rather than
// silently reindex; callers must force a full reindex instead.
func (s *Store) CreateOrUpdateTable(ctx context.Context, dimensions int) error {
	if s.ann.count() > 0 && s.ann.config.Dimensions != dimensions {
		return ErrDimensionMismatch{Expected: s.ann.config.Dimensions, Got: dimensions}
	}
	s.ann.config.Dimensions = dimensions
	return nil
}

// AddChunks writes chunks and vectors to all three sub-indexes. This is not
// transactional across them: a crash between the ANN write and the scalar
// write can leave an embedding with no joinable row, but the next index run
// detects and repairs the mismatch by SHA-keyed diffing in the indexer.
func (s *Store) AddChunks(ctx context.Context, chunks []model.CodeChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("store: chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	lexDocs := make(map[string]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		lexDocs[c.ID] = lexicalDocText(c)
	}

	if err := s.ann.add(ids, vectors); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	if err := s.scalar.upsert(ctx, chunks); err != nil {
		return fmt.Errorf("upsert scalar rows: %w", err)
	}
	if err := s.lexical.index(ctx, lexDocs); err != nil {
		return fmt.Errorf("index lexical docs: %w", err)
	}
	return nil
}

// lexicalDocText is what gets BM25-indexed for a chunk: name and docstring
// carry more search signal per token than raw code, so they're folded in
// alongside the content body.
func lexicalDocText(c model.CodeChunk) string {
	if c.Docstring == "" {
		return c.Name + "\n" + c.Content
	}
	return c.Name + "\n" + c.Docstring + "\n" + c.Content
}

// Search performs ANN semantic search and joins results back to full chunk
// rows, applying opts' scalar filters. Filter values are sanitized per
// spec.md §4.3 before being used; a value that fails sanitization causes
// Search to return an empty result set rather than executing anything.
func (s *Store) Search(ctx context.Context, query []float32, opts SearchOptions) ([]model.SearchResult, error) {
	if opts.Language != "" && !SanitizeScalar(string(opts.Language)) {
		return nil, nil
	}
	if opts.ChunkType != "" && !SanitizeScalar(string(opts.ChunkType)) {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	// Overfetch before filtering so scalar predicates don't starve the
	// final result count.
	raw, err := s.ann.search(ctx, query, limit*4+20)
	if err != nil {
		return nil, fmt.Errorf("ann search: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	ids := make([]string, len(raw))
	scores := make(map[string]float32, len(raw))
	for i, r := range raw {
		ids[i] = r.ID
		scores[r.ID] = r.Score
	}

	rows, err := s.scalar.getManyByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("join scalar rows: %w", err)
	}

	results := make([]model.SearchResult, 0, limit)
	for _, r := range raw {
		chunk, ok := rows[r.ID]
		if !ok {
			continue // orphaned ANN entry; scalar row was deleted without a matching ann.delete
		}
		if opts.Language != "" && chunk.Language != opts.Language {
			continue
		}
		if opts.ChunkType != "" && chunk.ChunkType != opts.ChunkType {
			continue
		}
		results = append(results, model.SearchResult{Chunk: chunk, Score: float64(scores[r.ID])})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// HybridSearch combines semantic (ANN) and lexical (BM25) search via
// reciprocal rank fusion, an additive enrichment on top of Search's core
// contract: it returns the same []model.SearchResult shape, ranked by a
// fused score instead of raw cosine similarity.
func (s *Store) HybridSearch(ctx context.Context, query []float32, queryText string, opts SearchOptions) ([]model.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	fanout := limit*4 + 20

	semantic, err := s.ann.search(ctx, query, fanout)
	if err != nil {
		return nil, fmt.Errorf("ann search: %w", err)
	}
	lexicalHits, err := s.lexical.search(ctx, queryText, fanout)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	fused := make(map[string]float64)
	for rank, r := range semantic {
		fused[r.ID] += 1.0 / float64(rrfConstant+rank+1)
	}
	for _, r := range lexicalHits {
		fused[r.DocID] += 1.0 / float64(rrfConstant+r.Rank)
	}
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	rows, err := s.scalar.getManyByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("join scalar rows: %w", err)
	}

	type scored struct {
		chunk model.CodeChunk
		score float64
	}
	var candidates []scored
	for id, score := range fused {
		chunk, ok := rows[id]
		if !ok {
			continue
		}
		if opts.Language != "" && chunk.Language != opts.Language {
			continue
		}
		if opts.ChunkType != "" && chunk.ChunkType != opts.ChunkType {
			continue
		}
		candidates = append(candidates, scored{chunk: chunk, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]model.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = model.SearchResult{Chunk: c.chunk, Score: c.score}
	}
	return results, nil
}

func (s *Store) GetChunkByID(ctx context.Context, id string) (model.CodeChunk, bool, error) {
	return s.scalar.getByID(ctx, id)
}

func (s *Store) GetChunksByFile(ctx context.Context, relPath string) ([]model.CodeChunk, error) {
	return s.scalar.getByFile(ctx, relPath)
}

// DeleteChunksByFile removes a file's chunks from all three sub-indexes and
// returns their IDs for the caller (typically the indexer or LLM cache) to
// also invalidate.
func (s *Store) DeleteChunksByFile(ctx context.Context, relPath string) ([]string, error) {
	ids, err := s.scalar.deleteByFile(ctx, relPath)
	if err != nil {
		return nil, fmt.Errorf("delete scalar rows: %w", err)
	}
	s.ann.delete(ids)
	if err := s.lexical.deleteDocs(ctx, ids); err != nil {
		return nil, fmt.Errorf("delete lexical docs: %w", err)
	}
	return ids, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	return s.scalar.stats(ctx)
}

// Close persists the ANN index to disk and closes the SQLite connections.
func (s *Store) Close() error {
	if err := s.ann.save(filepath.Join(s.dir, "vectors.hnsw")); err != nil {
		return fmt.Errorf("save ann index: %w", err)
	}
	if err := s.ann.close(); err != nil {
		return err
	}
	if err := s.scalar.close(); err != nil {
		return fmt.Errorf("close scalar store: %w", err)
	}
	return s.lexical.close()
}
