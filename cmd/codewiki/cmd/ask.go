package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewiki-dev/codewiki/internal/config"
	"github.com/codewiki-dev/codewiki/internal/llmcache"
	"github.com/codewiki-dev/codewiki/internal/research"
	"github.com/codewiki-dev/codewiki/internal/store"
	"github.com/codewiki-dev/codewiki/internal/telemetry"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed codebase, with cited sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "))
		},
	}
	return cmd
}

func runAsk(cmd *cobra.Command, question string) error {
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

	provider, err := buildLLMProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	cache, err := llmcache.Open(llmCacheDir(root), provider, embedder, llmcache.Config{
		TTLSeconds:              cfg.LLMCache.TTLSeconds,
		MaxEntries:              cfg.LLMCache.MaxEntries,
		SimilarityThreshold:     cfg.LLMCache.SimilarityThreshold,
		MaxCacheableTemperature: cfg.LLMCache.MaxCacheableTemperature,
	})
	if err != nil {
		return fmt.Errorf("open llm cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	pipeline := research.New(cache, vs, embedder, research.Config{
		MaxSubQuestions:      cfg.DeepResearch.MaxSubQuestions,
		ChunksPerSubquestion: cfg.DeepResearch.ChunksPerSubquestion,
		MaxTotalChunks:       cfg.DeepResearch.MaxTotalChunks,
		MaxFollowUpQueries:   cfg.DeepResearch.MaxFollowUpQueries,
		SynthesisTemperature: cfg.DeepResearch.SynthesisTemperature,
		SynthesisMaxTokens:   cfg.DeepResearch.SynthesisMaxTokens,
	})

	progress := func(event research.ProgressEvent) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d] %s\n", event.Step, event.Message)
	}

	qm, closeQM := openQueryMetrics(root)
	defer closeQM()

	start := time.Now()
	result, err := pipeline.Run(ctx, question, nil, progress)
	latency := time.Since(start)
	if err != nil {
		return fmt.Errorf("research: %w", err)
	}

	qm.Record(telemetry.QueryEvent{
		Query:       question,
		QueryType:   telemetry.QueryTypeSemantic,
		ResultCount: len(result.Sources),
		Latency:     latency,
		Timestamp:   time.Now(),
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Answer)
	if len(result.Sources) > 0 {
		fmt.Fprintln(out, "\nsources:")
		for _, src := range result.Sources {
			fmt.Fprintf(out, "  %s:%d-%d  %s %s (%.2f)\n",
				src.FilePath, src.StartLine, src.EndLine, src.ChunkType, src.Name, src.RelevanceScore)
		}
	}
	return nil
}
