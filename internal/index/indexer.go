package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codewiki-dev/codewiki/internal/chunk"
	"github.com/codewiki-dev/codewiki/internal/embed"
	"github.com/codewiki-dev/codewiki/internal/lang"
	"github.com/codewiki-dev/codewiki/internal/model"
	"github.com/codewiki-dev/codewiki/internal/store"
)

// Indexer implements spec.md §4.7. It owns the parser registry, chunker,
// embedder, and vector store used across runs, and persists IndexStatus
// under Config.DataDir.
type Indexer struct {
	cfg      Config
	registry *lang.Registry
	chunker  *chunk.Chunker
	embedder embed.Embedder
	vector   *store.Store

	mu         sync.Mutex
	lastStatus model.IndexStatus
	hasLastRun bool
}

// New constructs an Indexer. classSplitThreshold is forwarded to the
// Chunker (spec.md §6's `chunking.class_split_threshold`).
func New(cfg Config, embedder embed.Embedder, vector *store.Store, classSplitThreshold int) *Indexer {
	registry := lang.Default()
	return &Indexer{
		cfg:      cfg,
		registry: registry,
		chunker:  chunk.New(registry, classSplitThreshold),
		embedder: embedder,
		vector:   vector,
	}
}

// Status returns the most recently loaded or produced IndexStatus, or
// false if none exists yet on disk or in memory.
func (ix *Indexer) Status(ctx context.Context) (model.IndexStatus, bool, error) {
	ix.mu.Lock()
	if ix.hasLastRun {
		defer ix.mu.Unlock()
		return ix.lastStatus, true, nil
	}
	ix.mu.Unlock()
	return loadStatus(ix.cfg.DataDir)
}

// fileOutcome pairs a scanned file with its classification result, so the
// concurrent parse/chunk stage below can report per-file failures without
// a shared mutable accumulator.
type fileOutcome struct {
	file   model.FileInfo
	chunks []model.CodeChunk
	err    error
}

// Index runs one indexing pass: a full rebuild when fullRebuild is true or
// when schema migration demands it, otherwise the incremental diff
// algorithm from spec.md §4.7.
func (ix *Indexer) Index(ctx context.Context, fullRebuild bool, progress ProgressFunc) (Result, error) {
	prior, existed, err := loadStatus(ix.cfg.DataDir)
	if err != nil {
		return Result{}, err
	}

	if existed && needsMigration(prior) {
		migrated, requiresFullRebuild := migrateStatus(prior)
		prior = migrated
		if requiresFullRebuild {
			fullRebuild = true
		}
	}
	if !existed {
		fullRebuild = true
	}

	files, err := scan(ix.cfg, ix.registry)
	if err != nil {
		return Result{}, fmt.Errorf("index: scan: %w", err)
	}

	var toEmbed []model.FileInfo
	var toDelete []string
	newStatusFiles := make(map[string]model.FileStatus, len(files))

	if fullRebuild {
		if err := ix.vector.CreateOrUpdateTable(ctx, ix.embedder.Dimensions()); err != nil {
			return Result{}, fmt.Errorf("index: recreate table: %w", err)
		}
		toEmbed = files
	} else {
		onDisk := make(map[string]model.FileInfo, len(files))
		for _, f := range files {
			onDisk[f.RelPath] = f
		}
		for relPath := range prior.Files {
			if _, ok := onDisk[relPath]; !ok {
				toDelete = append(toDelete, relPath)
			}
		}
		for _, f := range files {
			prevStatus, existedBefore := prior.Files[f.RelPath]
			switch {
			case !existedBefore:
				toEmbed = append(toEmbed, f)
			case prevStatus.SHA256 != f.SHA256Hex:
				toDelete = append(toDelete, f.RelPath)
				toEmbed = append(toEmbed, f)
			default:
				newStatusFiles[f.RelPath] = prevStatus
			}
		}
	}

	total := len(toDelete) + len(toEmbed)
	current := 0
	report := func(message string) {
		current++
		safeProgress(progress, message, current, total)
	}

	for _, relPath := range toDelete {
		report("deleting " + relPath)
		if _, err := ix.vector.DeleteChunksByFile(ctx, relPath); err != nil {
			slog.Warn("index: delete chunks by file failed", slog.String("file", relPath), slog.String("error", err.Error()))
		}
	}

	outcomes := ix.parseAndChunkConcurrently(ctx, toEmbed)
	for _, outcome := range outcomes {
		report("indexing " + outcome.file.RelPath)
		if outcome.err != nil {
			slog.Warn("index: process file failed", slog.String("file", outcome.file.RelPath), slog.String("error", outcome.err.Error()))
			continue
		}
		if len(outcome.chunks) == 0 {
			newStatusFiles[outcome.file.RelPath] = model.FileStatus{SHA256: outcome.file.SHA256Hex}
			continue
		}

		vectors, err := ix.embedChunks(ctx, outcome.chunks)
		if err != nil {
			slog.Warn("index: embed chunks failed", slog.String("file", outcome.file.RelPath), slog.String("error", err.Error()))
			continue
		}
		if err := ix.vector.AddChunks(ctx, outcome.chunks, vectors); err != nil {
			slog.Warn("index: add chunks failed", slog.String("file", outcome.file.RelPath), slog.String("error", err.Error()))
			continue
		}

		ids := make([]string, len(outcome.chunks))
		for i, c := range outcome.chunks {
			ids[i] = c.ID
		}
		newStatusFiles[outcome.file.RelPath] = model.FileStatus{SHA256: outcome.file.SHA256Hex, ChunkIDs: ids}
	}

	totalChunks := 0
	for _, fs := range newStatusFiles {
		totalChunks += len(fs.ChunkIDs)
	}
	status := model.IndexStatus{
		IndexedAt:     float64(time.Now().Unix()),
		TotalFiles:    len(newStatusFiles),
		TotalChunks:   totalChunks,
		SchemaVersion: CurrentSchemaVersion,
		Files:         newStatusFiles,
	}
	if err := saveStatus(ix.cfg.DataDir, status); err != nil {
		return Result{}, err
	}
	safeProgress(progress, "index saved", total, total)

	ix.mu.Lock()
	ix.lastStatus = status
	ix.hasLastRun = true
	ix.mu.Unlock()

	return Result{Status: status, FilesAdded: len(toEmbed), FilesDeleted: len(toDelete), FullRebuild: fullRebuild}, nil
}

// parseAndChunkConcurrently fans work out across a bounded worker pool
// (size = logical CPUs), per spec.md §5's guidance that parsing/chunking
// is CPU-bound and belongs on a dedicated pool rather than the async
// runtime used for embedding and vector-store I/O. Results are returned in
// scan order regardless of completion order, so the final IndexStatus
// this produces does not depend on goroutine scheduling (spec.md §5's
// determinism guarantee for incremental indexing).
func (ix *Indexer) parseAndChunkConcurrently(ctx context.Context, files []model.FileInfo) []fileOutcome {
	outcomes := make([]fileOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, runtime.NumCPU()))

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			chunks, err := ix.processFile(gctx, f)
			outcomes[i] = fileOutcome{file: f, chunks: chunks, err: err}
			return nil // per-file errors are carried in the outcome, not propagated
		})
	}
	_ = g.Wait()
	return outcomes
}

// processFile parses and chunks a single file. Each call constructs its
// own Parser because tree-sitter parser instances are not safe to share
// across goroutines (spec.md §5).
func (ix *Indexer) processFile(ctx context.Context, f model.FileInfo) ([]model.CodeChunk, error) {
	p := lang.NewParserWithRegistry(ix.registry)
	defer p.Close()

	tree, _, _, ok, err := p.ParseFile(ctx, f.AbsolutePath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return ix.chunker.Chunk(tree, f.RelPath)
}

// embedChunks batches chunk content through the Embedder in one call per
// file's chunk set, relying on the Embedder implementation's own internal
// batching/retry policy (internal/embed.WithRetry) for the network
// boundary.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []model.CodeChunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = embedText(c)
	}
	return ix.embedder.EmbedBatch(ctx, texts)
}

func embedText(c model.CodeChunk) string {
	if c.Docstring != "" {
		return c.Name + "\n" + c.Docstring + "\n" + c.Content
	}
	return c.Name + "\n" + c.Content
}

func safeProgress(progress ProgressFunc, message string, current, total int) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("index: progress callback panicked", slog.Any("recover", r))
		}
	}()
	progress(message, current, total)
}
