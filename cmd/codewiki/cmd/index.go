package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/codewiki-dev/codewiki/internal/config"
	"github.com/codewiki-dev/codewiki/internal/index"
	"github.com/codewiki-dev/codewiki/internal/output"
	"github.com/codewiki-dev/codewiki/internal/preflight"
	"github.com/codewiki-dev/codewiki/internal/store"
	"github.com/codewiki-dev/codewiki/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var fullRebuild bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or update the local code index for a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(cmd, path, fullRebuild)
		},
	}

	cmd.Flags().BoolVar(&fullRebuild, "full", false, "Force a full rebuild even if an index already exists")
	return cmd
}

func runIndex(cmd *cobra.Command, path string, fullRebuild bool) error {
	root, err := resolveRoot(path)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(dataDir(root), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Preflight checks run once per data dir (marker file caches a pass) so
	// a hot `watch` reindex loop doesn't re-stat disk/memory/fd limits on
	// every debounced run.
	if preflight.NeedsCheck(dataDir(root)) {
		checker := preflight.New(preflight.WithOutput(cmd.ErrOrStderr()))
		results := checker.RunAll(cmd.Context(), root)
		if checker.HasCriticalFailures(results) {
			checker.PrintResults(results)
			return fmt.Errorf("preflight checks failed")
		}
		if err := preflight.MarkPassed(dataDir(root)); err != nil {
			return fmt.Errorf("mark preflight passed: %w", err)
		}
	}

	// spec.md §5's single-writer policy: one index run at a time per
	// repository. A second `index` or `watch` invocation blocks here
	// rather than racing the first over status.json and the vector store.
	lock := flock.New(lockPath(root))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	ctx := cmd.Context()
	embedder := buildEmbedder(ctx, cfg)
	defer func() { _ = embedder.Close() }()

	vs, err := store.OpenWithBackend(vectorsDir(root), embedder.Dimensions(), cfg.Search.BM25Backend)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer func() { _ = vs.Close() }()

	ixCfg := index.Config{
		RootDir:      root,
		DataDir:      dataDir(root),
		IncludeGlobs: cfg.Indexer.Include,
		ExcludeGlobs: cfg.Indexer.Exclude,
	}
	ix := index.New(ixCfg, embedder, vs, cfg.Chunking.ClassSplitThreshold)

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithProjectDir(root)))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("start progress renderer: %w", err)
	}

	start := time.Now()
	result, err := ix.Index(ctx, fullRebuild, renderProgress(renderer))
	if err != nil {
		_ = renderer.Stop()
		return fmt.Errorf("index: %w", err)
	}

	renderer.Complete(ui.CompletionStats{
		Files:    result.Status.TotalFiles,
		Chunks:   result.Status.TotalChunks,
		Duration: time.Since(start),
	})
	_ = renderer.Stop()

	out := output.New(cmd.OutOrStdout())
	out.Successf("indexed %d files, %d chunks (+%d -%d) in %s",
		result.Status.TotalFiles, result.Status.TotalChunks,
		result.FilesAdded, result.FilesDeleted, time.Since(start).Round(time.Millisecond))
	return nil
}
