// Package llmcache implements the LLM Cache of spec.md §4.6: a decorator
// around any llm.Provider that deduplicates responses via a two-path
// lookup (exact hash, then ANN similarity), TTL eviction, and a
// streaming-compatible wrapping contract.
//
// Grounded on the teacher's internal/embed/cached.go decorator idiom
// (Inner() accessor, cache-key hashing) generalized from an embedding
// cache to an LLM response cache, reusing internal/store's VectorStore
// abstraction for the similarity path against a small dedicated index of
// cached prompts.
package llmcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/codewiki-dev/codewiki/internal/embed"
	"github.com/codewiki-dev/codewiki/internal/llm"
	"github.com/codewiki-dev/codewiki/internal/model"
)

// Config holds the configuration keys spec.md §6 lists under llm_cache.*.
type Config struct {
	TTLSeconds              int
	MaxEntries              int
	SimilarityThreshold     float64
	MaxCacheableTemperature float64
}

// DefaultConfig mirrors the teacher's general cache-sizing defaults,
// adapted to the LLM response cache's semantics.
func DefaultConfig() Config {
	return Config{
		TTLSeconds:              24 * 60 * 60,
		MaxEntries:              10_000,
		SimilarityThreshold:     0.95,
		MaxCacheableTemperature: 0.3,
	}
}

// Cache wraps an llm.Provider with the two-path lookup. It owns its own
// backing store (records.go) and an embedder used only to vectorize
// prompts for the similarity path — it does not embed responses.
type Cache struct {
	inner    llm.Provider
	embedder embed.Embedder
	records  *recordStore
	cfg      Config

	hits    int64
	misses  int64
	skipped int64
}

var _ llm.Provider = (*Cache)(nil)

// Open constructs a Cache persisted under dir (typically
// ".codewiki/llm_cache/<submodule>").
func Open(dir string, inner llm.Provider, embedder embed.Embedder, cfg Config) (*Cache, error) {
	records, err := newRecordStore(dir, embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner, embedder: embedder, records: records, cfg: cfg}, nil
}

func (c *Cache) Name() string { return c.inner.Name() }

func exactHash(systemPrompt, prompt string) string {
	sum := sha256.Sum256([]byte(systemPrompt + "\n---\n" + prompt))
	return hex.EncodeToString(sum[:])
}

// lookup implements §4.6's two-path read. It returns no error: store and
// embedding failures are counted as misses (CacheCorruption per §7 is
// swallowed, never escalated).
func (c *Cache) lookup(ctx context.Context, systemPrompt, prompt string, temperature float64) (string, bool) {
	if temperature > c.cfg.MaxCacheableTemperature {
		c.skipped++
		return "", false
	}

	hash := exactHash(systemPrompt, prompt)
	if rec, ok, err := c.records.getByExactHash(ctx, hash); err == nil && ok {
		if c.withinTTL(rec) {
			c.records.touchHit(ctx, rec.ID)
			c.hits++
			return rec.Response, true
		}
	}

	vec, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		c.misses++
		return "", false
	}
	candidates, err := c.records.searchSimilar(ctx, vec, 5)
	if err != nil {
		c.misses++
		return "", false
	}
	for _, cand := range candidates {
		similarity := 1 - cand.Distance
		if similarity >= c.cfg.SimilarityThreshold && cand.Record.ModelName == c.inner.Name() && c.withinTTL(cand.Record) {
			c.records.touchHit(ctx, cand.Record.ID)
			c.hits++
			return cand.Record.Response, true
		}
	}

	c.misses++
	return "", false
}

func (c *Cache) withinTTL(rec model.CacheRecord) bool {
	if rec.TTLSeconds <= 0 {
		return true
	}
	return time.Since(rec.CreatedAt) < time.Duration(rec.TTLSeconds)*time.Second
}

// store writes a fresh record and runs TTL-only eviction, per §4.6 and the
// §9 open-question resolution (LRU updates are tracked via HitCount/LastHitAt
// but not used to drive eviction in v1).
func (c *Cache) store(ctx context.Context, systemPrompt, prompt, response string, temperature float64) {
	if temperature > c.cfg.MaxCacheableTemperature {
		return
	}
	vec, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		return
	}
	rec := model.CacheRecord{
		ID:           exactHash(systemPrompt, prompt) + ":" + c.inner.Name(),
		ExactHash:    exactHash(systemPrompt, prompt),
		Vector:       vec,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Response:     response,
		Temperature:  temperature,
		ModelName:    c.inner.Name(),
		CreatedAt:    cacheNow(),
		TTLSeconds:   c.cfg.TTLSeconds,
	}
	if err := c.records.put(ctx, rec); err != nil {
		return
	}
	c.records.evictExpired(ctx, c.cfg.MaxEntries)
}

// Generate checks the cache before delegating to the wrapped provider,
// storing the result on a miss.
func (c *Cache) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if cached, ok := c.lookup(ctx, opts.SystemPrompt, prompt, opts.Temperature); ok {
		return cached, nil
	}
	response, err := c.inner.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	c.store(ctx, opts.SystemPrompt, prompt, response, opts.Temperature)
	return response, nil
}

// GenerateStream satisfies the wrapping contract from §4.6: a cache hit is
// replayed as a small number of synthetic chunks; a miss passes the inner
// stream through unchanged while accumulating it for storage on
// completion.
func (c *Cache) GenerateStream(ctx context.Context, prompt string, opts llm.GenerateOptions) (<-chan llm.StreamChunk, error) {
	if cached, ok := c.lookup(ctx, opts.SystemPrompt, prompt, opts.Temperature); ok {
		out := make(chan llm.StreamChunk, 2)
		out <- llm.StreamChunk{Text: cached}
		out <- llm.StreamChunk{Done: true}
		close(out)
		return out, nil
	}

	inner, err := c.inner.GenerateStream(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var accumulated string
		for chunk := range inner {
			accumulated += chunk.Text
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				break
			}
		}
		c.store(ctx, opts.SystemPrompt, prompt, accumulated, opts.Temperature)
	}()
	return out, nil
}

// Stats returns the hit/miss/skip counters for observability.
func (c *Cache) Stats() (hits, misses, skipped int64) {
	return c.hits, c.misses, c.skipped
}

func (c *Cache) Close() error {
	return c.records.close()
}

// cacheNow exists so tests can stub the clock; production code always uses
// the real wall clock.
var cacheNow = time.Now
