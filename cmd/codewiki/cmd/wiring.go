package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/codewiki-dev/codewiki/internal/config"
	"github.com/codewiki-dev/codewiki/internal/embed"
	"github.com/codewiki-dev/codewiki/internal/index"
	"github.com/codewiki-dev/codewiki/internal/lifecycle"
	"github.com/codewiki-dev/codewiki/internal/llm"
	"github.com/codewiki-dev/codewiki/internal/model"
	"github.com/codewiki-dev/codewiki/internal/telemetry"
	"github.com/codewiki-dev/codewiki/internal/ui"
)

// parseLanguage maps a CLI-supplied string to model.Language, passing
// through unrecognized values as-is since the filter is an exact-match
// string comparison downstream.
func parseLanguage(s string) model.Language {
	return model.Language(s)
}

// parseChunkType maps a CLI-supplied string to model.ChunkType.
func parseChunkType(s string) model.ChunkType {
	return model.ChunkType(s)
}

// dataDir returns the on-disk root spec.md §6 describes: <root>/.codewiki,
// holding vectors/, llm_cache/, and status.json.
func dataDir(root string) string {
	return filepath.Join(root, ".codewiki")
}

func vectorsDir(root string) string {
	return filepath.Join(dataDir(root), "vectors")
}

func llmCacheDir(root string) string {
	return filepath.Join(dataDir(root), "llm_cache")
}

func telemetryDBPath(root string) string {
	return filepath.Join(dataDir(root), "telemetry.db")
}

// openQueryMetrics opens the local query-telemetry store (search/ask query
// patterns, zero-result queries, latency buckets — never reported
// externally). Telemetry is best-effort: a failure to open the sqlite
// file degrades to an in-memory-only collector rather than blocking the
// command the telemetry is just observing.
func openQueryMetrics(root string) (*telemetry.QueryMetrics, func()) {
	db, err := sql.Open("sqlite", telemetryDBPath(root))
	if err != nil {
		return telemetry.NewQueryMetrics(nil), func() {}
	}
	if err := telemetry.InitTelemetrySchema(db); err != nil {
		_ = db.Close()
		return telemetry.NewQueryMetrics(nil), func() {}
	}
	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		_ = db.Close()
		return telemetry.NewQueryMetrics(nil), func() {}
	}
	qm := telemetry.NewQueryMetrics(store)
	return qm, func() {
		_ = qm.Close()
		_ = db.Close()
	}
}

// lockPath is the single-writer lock spec.md §5 requires while an index
// run is in progress, guarding concurrent `index`/`watch` invocations
// against the same repository.
func lockPath(root string) string {
	return filepath.Join(dataDir(root), ".lock")
}

// buildEmbedder constructs the configured Embedding Provider (spec.md
// §4.4). "ollama" reaches out to a local Ollama daemon; anything else
// (including "static"/"local" or an unreachable Ollama) falls back to the
// dependency-free local hashing embedder.
func buildEmbedder(ctx context.Context, cfg *config.Config) embed.Embedder {
	if cfg.Embeddings.Provider == "ollama" {
		ensureOllamaReady(ctx, cfg.Embeddings.OllamaHost, cfg.Embeddings.Model)

		oc := embed.OllamaConfig{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		}
		if e, err := embed.NewOllamaEmbedder(ctx, oc); err == nil {
			return e
		}
	}
	return embed.NewLocalEmbedder(cfg.Embeddings.Dimensions)
}

// ensureOllamaReady gives the configured Ollama host the zero-config
// treatment: start the local daemon if it's installed but not running,
// and pull the embedding model if it's missing. On a TTY, a missing or
// unreachable Ollama prompts the user instead of failing silently.
// Failures here are not fatal — buildEmbedder falls back to the local
// hashing embedder when the Ollama round-trip still doesn't succeed
// afterward.
func ensureOllamaReady(ctx context.Context, host, modelName string) {
	mgr := lifecycle.NewOllamaManagerWithHost(host)

	opts := lifecycle.DefaultEnsureOpts()
	opts.ProgressFunc = lifecycle.CreatePullProgressFunc(os.Stdout)

	err := mgr.EnsureReady(ctx, modelName, opts)
	if err == nil || !lifecycle.IsTTY() {
		return
	}

	switch err.(type) {
	case *lifecycle.NotInstalledError:
		choice, promptErr := lifecycle.PromptNoEmbedder(os.Stdout, os.Stdin)
		if promptErr != nil {
			return
		}
		if choice == lifecycle.ChoiceShowInstall {
			lifecycle.ShowInstallInstructions(os.Stdout)
		}
	case *lifecycle.ModelNotFoundError:
		pull, promptErr := lifecycle.PromptModelNotFound(os.Stdout, os.Stdin, modelName)
		if promptErr == nil && pull {
			_ = mgr.PullModel(ctx, modelName, opts.ProgressFunc)
		}
	}
}

// buildLLMProvider constructs the configured LLM Provider (spec.md §4.5).
func buildLLMProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		ensureOllamaReady(ctx, cfg.LLM.OllamaHost, cfg.LLM.Model)
		return llm.NewOllamaProvider(cfg.LLM.OllamaHost, cfg.LLM.Model), nil
	case "openai":
		return llm.NewOpenAIProvider(cfg.LLM.BaseURL, apiKeyFromEnv(cfg.LLM.APIKeyEnv), cfg.LLM.Model), nil
	case "anthropic":
		return llm.NewAnthropicProvider(cfg.LLM.BaseURL, apiKeyFromEnv(cfg.LLM.APIKeyEnv), cfg.LLM.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// renderProgress adapts index.ProgressFunc's flat (message, current, total)
// callback onto a ui.Renderer, classifying the message by its stage keyword
// since the indexer reports stage names as plain text rather than a
// structured ui.Stage.
func renderProgress(r ui.Renderer) index.ProgressFunc {
	return func(message string, current, total int) {
		r.UpdateProgress(ui.ProgressEvent{
			Stage:   progressStage(message),
			Current: current,
			Total:   total,
			Message: message,
		})
	}
}

func progressStage(message string) ui.Stage {
	switch {
	case strings.Contains(message, "scan"):
		return ui.StageScanning
	case strings.Contains(message, "chunk"):
		return ui.StageChunking
	case strings.Contains(message, "embed"):
		return ui.StageEmbedding
	default:
		return ui.StageIndexing
	}
}

func apiKeyFromEnv(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// resolveRoot finds the project root from path, falling back to path
// itself (or the working directory) if no project markers are found.
func resolveRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return config.FindProjectRoot(abs)
}
