package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/codewiki-dev/codewiki/internal/config"
	"github.com/codewiki-dev/codewiki/internal/index"
	"github.com/codewiki-dev/codewiki/internal/lang"
	"github.com/codewiki-dev/codewiki/internal/store"
	"github.com/codewiki-dev/codewiki/internal/ui"
	"github.com/codewiki-dev/codewiki/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a repository and incrementally reindex on change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(cmd, path)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command, path string) error {
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

	// A first incremental index run (a full rebuild when no index status
	// exists yet) establishes a baseline before watching begins,
	// mirroring the "It Just Works" smart-default flow: watch always starts
	// from a consistent index rather than assuming one exists on disk.
	// The renderer auto-detects a TTY and falls back to plain line-based
	// output when stdout is redirected (CI logs, piping to a file).
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithProjectDir(root)))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("start progress renderer: %w", err)
	}
	baselineStart := time.Now()
	baselineResult, err := ix.Index(ctx, false, renderProgress(renderer))
	if err != nil {
		_ = renderer.Stop()
		return fmt.Errorf("initial index: %w", err)
	}
	renderer.Complete(ui.CompletionStats{
		Files:    baselineResult.Status.TotalFiles,
		Chunks:   baselineResult.Status.TotalChunks,
		Duration: time.Since(baselineStart),
	})
	_ = renderer.Stop()

	knownExts := make(map[string]bool)
	for _, ext := range lang.Default().Extensions() {
		knownExts[ext] = true
	}

	opts := watcher.Options{
		DebounceWindow:  time.Duration(cfg.Watcher.DebounceSeconds * float64(time.Second)),
		KnownExtensions: knownExts,
		IgnorePatterns:  cfg.Indexer.Exclude,
	}

	hw, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	watchCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := hw.Start(watchCtx, root); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = hw.Stop() }()

	runner := watcher.NewRunner(hw, ix)
	slog.Info("watching for changes", slog.String("root", root))
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", root)

	if err := runner.Run(watchCtx); err != nil && watchCtx.Err() == nil {
		return err
	}
	return nil
}
