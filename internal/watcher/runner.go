package watcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codewiki-dev/codewiki/internal/index"
)

// Runner wires a Watcher to an Indexer with the single-in-flight-run policy
// spec.md §4.9 requires: at most one incremental index run executes at a
// time; events arriving while a run is in progress accumulate and are
// folded into the next run rather than triggering one of their own.
type Runner struct {
	watcher Watcher
	indexer *index.Indexer

	mu      sync.Mutex
	running bool
	pending bool

	// AfterIndex, when set, runs after each successful incremental index,
	// e.g. to trigger downstream regeneration. It receives the changed
	// relative paths from the run that just completed.
	AfterIndex func(changedPaths []string)
}

// NewRunner constructs a Runner over an already-started watcher.
func NewRunner(w Watcher, ix *index.Indexer) *Runner {
	return &Runner{watcher: w, indexer: ix}
}

// Run drives the watcher's event stream until ctx is cancelled or the
// watcher stops. It never returns an index error to the caller: indexing
// failures are logged and the watcher keeps running.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-r.watcher.Events():
			if !ok {
				return nil
			}
			r.handleBatch(ctx, batch)
		case err, ok := <-r.watcher.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watcher reported error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runner) handleBatch(ctx context.Context, batch []FileEvent) {
	r.mu.Lock()
	if r.running {
		// A run is already in flight; mark pending so the trailing edge
		// of that run immediately schedules another, folding this batch's
		// effect in (the next Indexer.Index call rescans the whole tree).
		r.pending = true
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.runOnce(ctx, batch)
}

func (r *Runner) runOnce(ctx context.Context, batch []FileEvent) {
	defer func() {
		r.mu.Lock()
		r.running = false
		rerun := r.pending
		r.pending = false
		r.mu.Unlock()

		if rerun {
			r.handleBatch(ctx, nil)
		}
	}()

	result, err := r.indexer.Index(ctx, false, nil)
	if err != nil {
		slog.Warn("incremental index run failed", slog.String("error", err.Error()))
		return
	}

	slog.Info("incremental index run complete",
		slog.Int("files_added", result.FilesAdded),
		slog.Int("files_deleted", result.FilesDeleted),
	)

	if r.AfterIndex != nil {
		paths := make([]string, 0, len(batch))
		for _, ev := range batch {
			paths = append(paths, ev.Path)
		}
		r.AfterIndex(paths)
	}
}
