package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// annIndex wraps coder/hnsw, a pure-Go HNSW implementation chosen (per the
// teacher) to avoid a CGO dependency for approximate nearest-neighbor
// search. It tracks its own string-ID <-> internal-key mapping because the
// underlying graph only deals in uint64 keys.
type annIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// annMetadata is the gob-persisted sidecar holding the ID mapping, since the
// hnsw graph export only covers nodes and edges.
type annMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
}

func newANNIndex(cfg Config) *annIndex {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &annIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// add inserts or replaces vectors. An existing ID is lazily orphaned rather
// than deleted from the graph: coder/hnsw has a bug where deleting the last
// remaining node corrupts the graph, so the old key is simply unmapped and
// left to rot until the next full rebuild.
func (a *annIndex) add(ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("store: ids/vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("store: ann index is closed")
	}

	for _, v := range vectors {
		if len(v) != a.config.Dimensions {
			return ErrDimensionMismatch{Expected: a.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := a.idMap[id]; exists {
			delete(a.keyMap, existingKey)
			delete(a.idMap, id)
		}

		key := a.nextKey
		a.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if a.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		a.graph.Add(hnsw.MakeNode(key, vec))
		a.idMap[id] = key
		a.keyMap[key] = id
	}
	return nil
}

func (a *annIndex) search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, fmt.Errorf("store: ann index is closed")
	}
	if len(query) != a.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: a.config.Dimensions, Got: len(query)}
	}
	if a.graph.Len() == 0 {
		return nil, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	q := make([]float32, len(query))
	copy(q, query)
	if a.config.Metric == "cos" {
		normalizeVectorInPlace(q)
	}

	nodes := a.graph.Search(q, k)
	results := make([]VectorResult, 0, len(nodes))
	for _, n := range nodes {
		id, ok := a.keyMap[n.Key]
		if !ok {
			continue // orphaned node from a lazy delete/update
		}
		dist := a.graph.Distance(q, n.Value)
		results = append(results, VectorResult{ID: id, Distance: dist, Score: distanceToScore(dist, a.config.Metric)})
	}
	return results, nil
}

func (a *annIndex) delete(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if key, ok := a.idMap[id]; ok {
			delete(a.keyMap, key)
			delete(a.idMap, id)
		}
	}
}

func (a *annIndex) count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.idMap)
}

func (a *annIndex) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.graph = nil
	return nil
}

// save persists the graph (indexPath) and ID mapping (indexPath+".meta")
// atomically via temp-file-then-rename.
func (a *annIndex) save(indexPath string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return fmt.Errorf("store: ann index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return fmt.Errorf("create ann directory: %w", err)
	}

	tmp := indexPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create ann index file: %w", err)
	}
	if err := a.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export ann graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close ann index file: %w", err)
	}
	if err := os.Rename(tmp, indexPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename ann index file: %w", err)
	}

	return a.saveMetadata(indexPath + ".meta")
}

func (a *annIndex) saveMetadata(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create ann metadata temp file: %w", err)
	}
	meta := annMetadata{IDMap: a.idMap, NextKey: a.nextKey, Config: a.config}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode ann metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close ann metadata temp file: %w", err)
	}
	return os.Rename(tmp, path)
}

// load restores the graph and ID mapping from disk. A missing index file is
// not an error: the store starts empty.
func (a *annIndex) load(indexPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return nil
	}

	if err := a.loadMetadata(indexPath + ".meta"); err != nil {
		return fmt.Errorf("load ann metadata: %w", err)
	}

	f, err := os.Open(indexPath)
	if err != nil {
		return fmt.Errorf("open ann index file: %w", err)
	}
	defer f.Close()

	if err := a.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import ann graph: %w", err)
	}
	return nil
}

func (a *annIndex) loadMetadata(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ann metadata file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("ann metadata close failed", slog.String("error", cerr.Error()))
		}
	}()

	var meta annMetadata
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return fmt.Errorf("decode ann metadata: %w", err)
	}

	a.idMap = meta.IDMap
	a.nextKey = meta.NextKey
	a.config = meta.Config
	a.keyMap = make(map[uint64]string, len(a.idMap))
	for id, key := range a.idMap {
		a.keyMap[key] = id
	}
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default: // cos
		return 1.0 - distance/2.0
	}
}
