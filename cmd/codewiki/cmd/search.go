package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewiki-dev/codewiki/internal/config"
	"github.com/codewiki-dev/codewiki/internal/store"
	"github.com/codewiki-dev/codewiki/internal/telemetry"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var language string
	var chunkType string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid (semantic + lexical) search over the local index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), limit, language, chunkType)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().StringVar(&language, "language", "", "Filter results to one language")
	cmd.Flags().StringVar(&chunkType, "type", "", "Filter results to one chunk type")
	return cmd
}

func runSearch(cmd *cobra.Command, query string, limit int, language, chunkType string) error {
	root, err := resolveRoot(".")
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := cmd.Context()
	embedder := buildEmbedder(ctx, cfg)
	defer func() { _ = embedder.Close() }()

	vs, err := store.OpenWithBackend(vectorsDir(root), embedder.Dimensions(), cfg.Search.BM25Backend)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer func() { _ = vs.Close() }()

	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	opts := store.SearchOptions{Limit: limit}
	if language != "" {
		opts.Language = parseLanguage(language)
	}
	if chunkType != "" {
		opts.ChunkType = parseChunkType(chunkType)
	}

	qm, closeQM := openQueryMetrics(root)
	defer closeQM()

	start := time.Now()
	hits, err := vs.HybridSearch(ctx, queryVec, query, opts)
	latency := time.Since(start)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	qm.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   telemetry.QueryTypeMixed,
		ResultCount: len(hits),
		Latency:     latency,
		Timestamp:   time.Now(),
	})

	if len(hits) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no results")
		return nil
	}

	for i, hit := range hits {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %.3f  %s:%d-%d  %s %s\n",
			i+1, hit.Score, hit.Chunk.FilePath, hit.Chunk.StartLine, hit.Chunk.EndLine,
			hit.Chunk.ChunkType, hit.Chunk.Name)
	}
	return nil
}
