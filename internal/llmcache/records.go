package llmcache

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/hnsw"
	_ "modernc.org/sqlite"

	"github.com/codewiki-dev/codewiki/internal/model"
)

// recordStore persists cache records in SQLite (scalar lookup by exact
// hash, full record retrieval) and mirrors their embeddings in a small
// dedicated HNSW index (similarity lookup). The split mirrors
// internal/store's ann+scalar split, narrowed to this package's needs
// since llmcache cannot import store's unexported index type.
type recordStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string

	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dims    int
}

type similarityHit struct {
	Record   model.CacheRecord
	Distance float32
}

func newRecordStore(dir string, dims int) (*recordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("llmcache: create cache dir: %w", err)
	}

	dbPath := filepath.Join(dir, "cache.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("llmcache: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("llmcache: set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS llm_cache (
			id            TEXT PRIMARY KEY,
			exact_hash    TEXT NOT NULL,
			system_prompt TEXT NOT NULL,
			prompt        TEXT NOT NULL,
			response      TEXT NOT NULL,
			temperature   REAL NOT NULL,
			model_name    TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			hit_count     INTEGER NOT NULL DEFAULT 0,
			last_hit_at   INTEGER NOT NULL DEFAULT 0,
			ttl_seconds   INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("llmcache: create table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_llm_cache_exact_hash ON llm_cache(exact_hash)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("llmcache: create exact_hash index: %w", err)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	rs := &recordStore{
		db:     db,
		path:   dir,
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		dims:   dims,
	}
	if err := rs.loadIndex(); err != nil {
		db.Close()
		return nil, fmt.Errorf("llmcache: load index: %w", err)
	}
	return rs, nil
}

func (rs *recordStore) put(ctx context.Context, rec model.CacheRecord) error {
	if len(rec.Vector) != rs.dims {
		return fmt.Errorf("llmcache: embedding dimension mismatch: want %d, got %d", rs.dims, len(rec.Vector))
	}

	_, err := rs.db.ExecContext(ctx, `
		INSERT INTO llm_cache (id, exact_hash, system_prompt, prompt, response, temperature, model_name, created_at, hit_count, last_hit_at, ttl_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			response = excluded.response,
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds
	`, rec.ID, rec.ExactHash, rec.SystemPrompt, rec.Prompt, rec.Response, rec.Temperature, rec.ModelName, rec.CreatedAt.Unix(), rec.TTLSeconds)
	if err != nil {
		return fmt.Errorf("llmcache: insert record: %w", err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if existing, ok := rs.idMap[rec.ID]; ok {
		delete(rs.keyMap, existing)
		delete(rs.idMap, rec.ID)
	}
	vec := make([]float32, len(rec.Vector))
	copy(vec, rec.Vector)
	normalizeVector(vec)
	key := rs.nextKey
	rs.nextKey++
	rs.graph.Add(hnsw.MakeNode(key, vec))
	rs.idMap[rec.ID] = key
	rs.keyMap[key] = rec.ID
	return rs.saveIndexLocked()
}

func (rs *recordStore) getByExactHash(ctx context.Context, hash string) (model.CacheRecord, bool, error) {
	row := rs.db.QueryRowContext(ctx, `
		SELECT id, exact_hash, system_prompt, prompt, response, temperature, model_name, created_at, hit_count, last_hit_at, ttl_seconds
		FROM llm_cache WHERE exact_hash = ? ORDER BY created_at DESC LIMIT 1
	`, hash)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return model.CacheRecord{}, false, nil
	}
	if err != nil {
		return model.CacheRecord{}, false, fmt.Errorf("llmcache: query exact hash: %w", err)
	}
	return rec, true, nil
}

func (rs *recordStore) getByID(ctx context.Context, id string) (model.CacheRecord, bool, error) {
	row := rs.db.QueryRowContext(ctx, `
		SELECT id, exact_hash, system_prompt, prompt, response, temperature, model_name, created_at, hit_count, last_hit_at, ttl_seconds
		FROM llm_cache WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return model.CacheRecord{}, false, nil
	}
	if err != nil {
		return model.CacheRecord{}, false, fmt.Errorf("llmcache: query id: %w", err)
	}
	return rec, true, nil
}

func (rs *recordStore) searchSimilar(ctx context.Context, query []float32, k int) ([]similarityHit, error) {
	if len(query) != rs.dims {
		return nil, fmt.Errorf("llmcache: query dimension mismatch: want %d, got %d", rs.dims, len(query))
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rs.mu.RLock()
	if rs.graph.Len() == 0 {
		rs.mu.RUnlock()
		return nil, nil
	}
	q := make([]float32, len(query))
	copy(q, query)
	normalizeVector(q)
	nodes := rs.graph.Search(q, k)
	ids := make([]string, 0, len(nodes))
	distances := make(map[string]float32, len(nodes))
	for _, n := range nodes {
		id, ok := rs.keyMap[n.Key]
		if !ok {
			continue
		}
		ids = append(ids, id)
		distances[id] = rs.graph.Distance(q, n.Value)
	}
	rs.mu.RUnlock()

	hits := make([]similarityHit, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := rs.getByID(ctx, id)
		if err != nil || !ok {
			continue
		}
		hits = append(hits, similarityHit{Record: rec, Distance: distances[id]})
	}
	return hits, nil
}

func (rs *recordStore) touchHit(ctx context.Context, id string) {
	now := time.Now().Unix()
	_, _ = rs.db.ExecContext(ctx, `UPDATE llm_cache SET hit_count = hit_count + 1, last_hit_at = ? WHERE id = ?`, now, id)
}

// evictExpired runs spec.md §4.6's TTL-only eviction: if row_count exceeds
// maxEntries, delete expired rows in batches of up to 100 per run.
func (rs *recordStore) evictExpired(ctx context.Context, maxEntries int) {
	var count int
	if err := rs.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM llm_cache`).Scan(&count); err != nil || count <= maxEntries {
		return
	}

	now := time.Now().Unix()
	rows, err := rs.db.QueryContext(ctx, `
		SELECT id FROM llm_cache WHERE (created_at + ttl_seconds) < ? AND ttl_seconds > 0 LIMIT 100
	`, now)
	if err != nil {
		return
	}
	var expired []string
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil {
			expired = append(expired, id)
		}
	}
	rows.Close()
	if len(expired) == 0 {
		return
	}

	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	for _, id := range expired {
		if _, err := tx.ExecContext(ctx, `DELETE FROM llm_cache WHERE id = ?`, id); err != nil {
			tx.Rollback()
			return
		}
	}
	if err := tx.Commit(); err != nil {
		return
	}

	rs.mu.Lock()
	for _, id := range expired {
		if key, ok := rs.idMap[id]; ok {
			delete(rs.keyMap, key)
			delete(rs.idMap, id)
		}
	}
	rs.mu.Unlock()
}

func (rs *recordStore) close() error {
	rs.mu.Lock()
	_ = rs.saveIndexLocked()
	rs.mu.Unlock()
	return rs.db.Close()
}

func scanRecord(row *sql.Row) (model.CacheRecord, error) {
	var rec model.CacheRecord
	var createdAt, lastHitAt int64
	err := row.Scan(&rec.ID, &rec.ExactHash, &rec.SystemPrompt, &rec.Prompt, &rec.Response, &rec.Temperature, &rec.ModelName, &createdAt, &rec.HitCount, &lastHitAt, &rec.TTLSeconds)
	if err != nil {
		return model.CacheRecord{}, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.LastHitAt = time.Unix(lastHitAt, 0)
	return rec, nil
}

type indexMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
}

func (rs *recordStore) indexPath() string { return filepath.Join(rs.path, "similarity.hnsw") }

func (rs *recordStore) saveIndexLocked() error {
	tmp := rs.indexPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("llmcache: create index temp file: %w", err)
	}
	if err := rs.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("llmcache: export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, rs.indexPath()); err != nil {
		return fmt.Errorf("llmcache: rename index file: %w", err)
	}

	metaTmp := rs.indexPath() + ".meta.tmp"
	mf, err := os.Create(metaTmp)
	if err != nil {
		return fmt.Errorf("llmcache: create metadata temp file: %w", err)
	}
	if err := gob.NewEncoder(mf).Encode(indexMetadata{IDMap: rs.idMap, NextKey: rs.nextKey}); err != nil {
		mf.Close()
		os.Remove(metaTmp)
		return fmt.Errorf("llmcache: encode metadata: %w", err)
	}
	if err := mf.Close(); err != nil {
		os.Remove(metaTmp)
		return err
	}
	return os.Rename(metaTmp, rs.indexPath()+".meta")
}

func (rs *recordStore) loadIndex() error {
	if _, err := os.Stat(rs.indexPath()); os.IsNotExist(err) {
		return nil
	}

	mf, err := os.Open(rs.indexPath() + ".meta")
	if err != nil {
		return fmt.Errorf("open metadata: %w", err)
	}
	var meta indexMetadata
	decErr := gob.NewDecoder(mf).Decode(&meta)
	mf.Close()
	if decErr != nil {
		return fmt.Errorf("decode metadata: %w", decErr)
	}
	rs.idMap = meta.IDMap
	rs.nextKey = meta.NextKey
	rs.keyMap = make(map[uint64]string, len(rs.idMap))
	for id, key := range rs.idMap {
		rs.keyMap[key] = id
	}

	f, err := os.Open(rs.indexPath())
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	return rs.graph.Import(bufio.NewReader(f))
}

func normalizeVector(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sumSquares)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
