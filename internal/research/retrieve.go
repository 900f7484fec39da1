package research

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codewiki-dev/codewiki/internal/model"
	"github.com/codewiki-dev/codewiki/internal/store"
)

// fanOutSearch embeds and searches every query concurrently with errgroup,
// writing each query's results into that query's own slot so the merged
// result preserves sub-question order, per spec.md §5's ordering
// guarantee ("within one sub-question, chunks are returned in Vector
// Store's ranking order... across sub-questions, results are concatenated
// in the sub-question order before dedup").
func (p *Pipeline) fanOutSearch(ctx context.Context, queries []string, limit int) []model.SearchResult {
	perQuery := make([][]model.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex // guards slog calls only; perQuery writes are index-disjoint
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, q)
			if err != nil {
				mu.Lock()
				slog.Warn("research: embed sub-query failed", slog.String("query", q), slog.String("error", err.Error()))
				mu.Unlock()
				return nil
			}
			results, err := p.vectorStore.Search(gctx, vec, store.SearchOptions{Limit: limit})
			if err != nil {
				mu.Lock()
				slog.Warn("research: vector search failed", slog.String("query", q), slog.String("error", err.Error()))
				mu.Unlock()
				return nil
			}
			perQuery[i] = results
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.SearchResult
	for _, results := range perQuery {
		merged = append(merged, results...)
	}
	return merged
}

// dedupeByChunkID merges initial and additional, keeping the
// highest-scoring copy of each chunk.id, then sorts descending by score
// and truncates to maxChunks — the "Prepare" step of spec.md §4.8.
func dedupeByChunkID(initial, additional []model.SearchResult, maxChunks int) []model.SearchResult {
	best := make(map[string]model.SearchResult)
	order := make([]string, 0, len(initial)+len(additional))
	for _, r := range append(append([]model.SearchResult{}, initial...), additional...) {
		if existing, ok := best[r.Chunk.ID]; !ok {
			best[r.Chunk.ID] = r
			order = append(order, r.Chunk.ID)
		} else if r.Score > existing.Score {
			best[r.Chunk.ID] = r
		}
	}

	merged := make([]model.SearchResult, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if maxChunks > 0 && len(merged) > maxChunks {
		merged = merged[:maxChunks]
	}
	return merged
}
