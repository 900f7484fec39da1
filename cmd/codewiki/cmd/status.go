package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewiki-dev/codewiki/internal/config"
	"github.com/codewiki-dev/codewiki/internal/embed"
	"github.com/codewiki-dev/codewiki/internal/index"
	"github.com/codewiki-dev/codewiki/internal/output"
	"github.com/codewiki-dev/codewiki/internal/profiling"
	"github.com/codewiki-dev/codewiki/internal/store"
	"github.com/codewiki-dev/codewiki/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show the current index status for a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runStatus(cmd, path, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status.json verbatim as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, path string, asJSON bool) error {
	root, err := resolveRoot(path)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := cmd.Context()
	// status reads whatever embedding dimensionality the vector store was
	// already built with; it never triggers a network call to determine
	// embedding width.
	localEmbedder := embed.NewLocalEmbedder(cfg.Embeddings.Dimensions)
	defer func() { _ = localEmbedder.Close() }()

	vs, err := store.Open(vectorsDir(root), 0)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer func() { _ = vs.Close() }()

	ixCfg := index.Config{RootDir: root, DataDir: dataDir(root)}
	ix := index.New(ixCfg, localEmbedder, vs, cfg.Chunking.ClassSplitThreshold)

	status, found, err := ix.Status(ctx)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if !found {
		output.New(cmd.OutOrStdout()).Warning("no index found; run `codewiki index` first")
		return nil
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	info := ui.StatusInfo{
		ProjectName:    filepath.Base(root),
		TotalFiles:     status.TotalFiles,
		TotalChunks:    status.TotalChunks,
		LastIndexed:    time.Unix(int64(status.IndexedAt), 0),
		MetadataSize:   pathSize(filepath.Join(vectorsDir(root), "chunks.db")),
		BM25Size:       lexicalIndexSize(root, cfg.Search.BM25Backend),
		VectorSize:     pathSize(filepath.Join(vectorsDir(root), "vectors.hnsw")),
		EmbedderType:   cfg.Embeddings.Provider,
		EmbedderStatus: "ready",
		EmbedderModel:  cfg.Embeddings.Model,
		WatcherStatus:  "n/a",
	}
	info.TotalSize = info.MetadataSize + info.BM25Size + info.VectorSize

	r := ui.NewStatusRenderer(cmd.OutOrStdout(), false)
	if err := r.Render(info); err != nil {
		return fmt.Errorf("render status: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  Memory in use: %s\n", profiling.FormatBytes(profiling.MemStats().Alloc))
	return nil
}

// lexicalIndexSize reports the on-disk size of whichever BM25 backend is
// configured: the lexical.db sqlite file, or the bleve index directory.
func lexicalIndexSize(root, backend string) int64 {
	if backend == "bleve" {
		return pathSize(filepath.Join(vectorsDir(root), "bleve"))
	}
	return pathSize(filepath.Join(vectorsDir(root), "lexical.db"))
}

// pathSize returns the size of a file, or the total size of a directory's
// regular files, or 0 if path doesn't exist.
func pathSize(path string) int64 {
	var total int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total
}
