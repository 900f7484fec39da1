package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete codewiki configuration. It mirrors the keys
// enumerated in the external interfaces section plus the ambient sections
// (embeddings/LLM provider selection, hybrid search weights, logging) every
// component in this repo needs at startup.
type Config struct {
	Version int `yaml:"version" json:"version"`

	Chunking     ChunkingConfig     `yaml:"chunking" json:"chunking"`
	LLMCache     LLMCacheConfig     `yaml:"llm_cache" json:"llm_cache"`
	DeepResearch DeepResearchConfig `yaml:"deep_research" json:"deep_research"`
	Watcher      WatcherConfig      `yaml:"watcher" json:"watcher"`
	Indexer      IndexerConfig      `yaml:"indexer" json:"indexer"`

	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ChunkingConfig configures the Chunker's class-split heuristic.
type ChunkingConfig struct {
	// ClassSplitThreshold is the line count above which a Class chunk is
	// split into a summary plus per-method chunks rather than emitted whole.
	ClassSplitThreshold int `yaml:"class_split_threshold" json:"class_split_threshold"`
}

// LLMCacheConfig configures the LLM Cache's TTL-based eviction and the
// temperature threshold above which requests bypass the cache entirely
// (no lookup on either path and no store).
type LLMCacheConfig struct {
	TTLSeconds              int     `yaml:"ttl_seconds" json:"ttl_seconds"`
	MaxEntries              int     `yaml:"max_entries" json:"max_entries"`
	SimilarityThreshold     float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	MaxCacheableTemperature float64 `yaml:"max_cacheable_temperature" json:"max_cacheable_temperature"`
}

// DeepResearchConfig configures the Research Pipeline's decomposition,
// retrieval, and synthesis bounds.
type DeepResearchConfig struct {
	MaxSubQuestions      int     `yaml:"max_sub_questions" json:"max_sub_questions"`
	ChunksPerSubquestion int     `yaml:"chunks_per_subquestion" json:"chunks_per_subquestion"`
	MaxTotalChunks       int     `yaml:"max_total_chunks" json:"max_total_chunks"`
	MaxFollowUpQueries   int     `yaml:"max_follow_up_queries" json:"max_follow_up_queries"`
	SynthesisTemperature float64 `yaml:"synthesis_temperature" json:"synthesis_temperature"`
	SynthesisMaxTokens   int     `yaml:"synthesis_max_tokens" json:"synthesis_max_tokens"`
}

// WatcherConfig configures the filesystem Watcher's debounce window.
type WatcherConfig struct {
	DebounceSeconds float64 `yaml:"debounce_seconds" json:"debounce_seconds"`
}

// IndexerConfig configures which paths the Indexer walks and skips.
type IndexerConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// EmbeddingsConfig selects and tunes the embedding provider (ambient:
// spec.md leaves embedding provider selection external, but a concrete
// binary needs one configured).
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// LLMConfig selects and tunes the LLM provider used by the Research
// Pipeline (ambient, per §6's note that wire formats are pluggable).
type LLMConfig struct {
	Provider    string        `yaml:"provider" json:"provider"`
	Model       string        `yaml:"model" json:"model"`
	OllamaHost  string        `yaml:"ollama_host" json:"ollama_host"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
}

// SearchConfig tunes the hybrid BM25/semantic fusion layer (ambient, §2
// item 13 of the expanded spec).
type SearchConfig struct {
	Hybrid         bool    `yaml:"hybrid" json:"hybrid"`
	BM25Weight     float64 `yaml:"bm25_weight" json:"bm25_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	RRFConstant    int     `yaml:"rrf_constant" json:"rrf_constant"`
	BM25Backend    string  `yaml:"bm25_backend" json:"bm25_backend"`
}

// LoggingConfig configures the structured slog logger (ambient).
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	Dir   string `yaml:"dir" json:"dir"`
}

// defaultIndexerExcludePatterns are always excluded from the Indexer walk.
var defaultIndexerExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.codewiki/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/go.sum",
}

// NewConfig returns a Config populated with the defaults named in spec.md
// §6, plus sensible ambient defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			ClassSplitThreshold: 200,
		},
		LLMCache: LLMCacheConfig{
			TTLSeconds:              24 * 60 * 60,
			MaxEntries:              10000,
			SimilarityThreshold:     0.95,
			MaxCacheableTemperature: 0.5,
		},
		DeepResearch: DeepResearchConfig{
			MaxSubQuestions:      4,
			ChunksPerSubquestion: 5,
			MaxTotalChunks:       30,
			MaxFollowUpQueries:   3,
			SynthesisTemperature: 0.5,
			SynthesisMaxTokens:   4096,
		},
		Watcher: WatcherConfig{
			DebounceSeconds: 2,
		},
		Indexer: IndexerConfig{
			Include: []string{},
			Exclude: defaultIndexerExcludePatterns,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 0, // 0 means auto-detect from the embedder
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
		},
		LLM: LLMConfig{
			Provider:   "ollama",
			Model:      "qwen2.5-coder:7b",
			OllamaHost: "http://localhost:11434",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		Search: SearchConfig{
			Hybrid:         true,
			BM25Weight:     0.5,
			SemanticWeight: 0.5,
			RRFConstant:    60,
			BM25Backend:    "sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/codewiki/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/codewiki/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codewiki", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codewiki", "config.yaml")
	}
	return filepath.Join(home, ".config", "codewiki", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// A nil config and nil error means there is no user config, which is fine.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the repository rooted at dir, applying
// layers in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/codewiki/config.yaml)
//  3. Project config (.codewiki.yaml in dir)
//  4. Environment variables (CODEWIKI_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .codewiki.yaml or
// .codewiki.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".codewiki.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".codewiki.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Chunking.ClassSplitThreshold != 0 {
		c.Chunking.ClassSplitThreshold = other.Chunking.ClassSplitThreshold
	}

	if other.LLMCache.TTLSeconds != 0 {
		c.LLMCache.TTLSeconds = other.LLMCache.TTLSeconds
	}
	if other.LLMCache.MaxEntries != 0 {
		c.LLMCache.MaxEntries = other.LLMCache.MaxEntries
	}
	if other.LLMCache.SimilarityThreshold != 0 {
		c.LLMCache.SimilarityThreshold = other.LLMCache.SimilarityThreshold
	}
	if other.LLMCache.MaxCacheableTemperature != 0 {
		c.LLMCache.MaxCacheableTemperature = other.LLMCache.MaxCacheableTemperature
	}

	if other.DeepResearch.MaxSubQuestions != 0 {
		c.DeepResearch.MaxSubQuestions = other.DeepResearch.MaxSubQuestions
	}
	if other.DeepResearch.ChunksPerSubquestion != 0 {
		c.DeepResearch.ChunksPerSubquestion = other.DeepResearch.ChunksPerSubquestion
	}
	if other.DeepResearch.MaxTotalChunks != 0 {
		c.DeepResearch.MaxTotalChunks = other.DeepResearch.MaxTotalChunks
	}
	if other.DeepResearch.MaxFollowUpQueries != 0 {
		c.DeepResearch.MaxFollowUpQueries = other.DeepResearch.MaxFollowUpQueries
	}
	if other.DeepResearch.SynthesisTemperature != 0 {
		c.DeepResearch.SynthesisTemperature = other.DeepResearch.SynthesisTemperature
	}
	if other.DeepResearch.SynthesisMaxTokens != 0 {
		c.DeepResearch.SynthesisMaxTokens = other.DeepResearch.SynthesisMaxTokens
	}

	if other.Watcher.DebounceSeconds != 0 {
		c.Watcher.DebounceSeconds = other.Watcher.DebounceSeconds
	}

	if len(other.Indexer.Include) > 0 {
		c.Indexer.Include = other.Indexer.Include
	}
	if len(other.Indexer.Exclude) > 0 {
		c.Indexer.Exclude = append(c.Indexer.Exclude, other.Indexer.Exclude...)
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}

	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.OllamaHost != "" {
		c.LLM.OllamaHost = other.LLM.OllamaHost
	}
	if other.LLM.BaseURL != "" {
		c.LLM.BaseURL = other.LLM.BaseURL
	}
	if other.LLM.APIKeyEnv != "" {
		c.LLM.APIKeyEnv = other.LLM.APIKeyEnv
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
	if other.LLM.MaxRetries != 0 {
		c.LLM.MaxRetries = other.LLM.MaxRetries
	}

	if other.Search.BM25Weight != 0 {
		c.Search.BM25Weight = other.Search.BM25Weight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.BM25Backend != "" {
		c.Search.BM25Backend = other.Search.BM25Backend
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Dir != "" {
		c.Logging.Dir = other.Logging.Dir
	}
}

// applyEnvOverrides applies CODEWIKI_* environment variable overrides,
// which take precedence over every config file layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODEWIKI_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("CODEWIKI_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("CODEWIKI_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("CODEWIKI_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CODEWIKI_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CODEWIKI_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv("CODEWIKI_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("CODEWIKI_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CODEWIKI_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// parseFloat64 parses a string to float64, tolerating surrounding whitespace.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindProjectRoot walks up from startDir looking for a .git directory or a
// .codewiki.yaml/.yml file, returning startDir itself if neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".codewiki.yaml")) ||
			fileExists(filepath.Join(currentDir, ".codewiki.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate checks the configuration for internally-inconsistent values.
func (c *Config) Validate() error {
	if c.Chunking.ClassSplitThreshold < 0 {
		return fmt.Errorf("chunking.class_split_threshold must be non-negative, got %d", c.Chunking.ClassSplitThreshold)
	}

	if c.LLMCache.MaxCacheableTemperature < 0 {
		return fmt.Errorf("llm_cache.max_cacheable_temperature must be non-negative, got %f", c.LLMCache.MaxCacheableTemperature)
	}
	if c.LLMCache.TTLSeconds < 0 {
		return fmt.Errorf("llm_cache.ttl_seconds must be non-negative, got %d", c.LLMCache.TTLSeconds)
	}

	if c.DeepResearch.MaxSubQuestions <= 0 {
		return fmt.Errorf("deep_research.max_sub_questions must be positive, got %d", c.DeepResearch.MaxSubQuestions)
	}
	if c.DeepResearch.MaxTotalChunks <= 0 {
		return fmt.Errorf("deep_research.max_total_chunks must be positive, got %d", c.DeepResearch.MaxTotalChunks)
	}

	if c.Watcher.DebounceSeconds < 0 {
		return fmt.Errorf("watcher.debounce_seconds must be non-negative, got %f", c.Watcher.DebounceSeconds)
	}

	if c.Search.Hybrid {
		if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
			return fmt.Errorf("search.bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight)
		}
		if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
			return fmt.Errorf("search.semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
		}
		sum := c.Search.BM25Weight + c.Search.SemanticWeight
		if math.Abs(sum-1.0) > 0.01 {
			return fmt.Errorf("search.bm25_weight + search.semantic_weight must equal 1.0, got %.2f", sum)
		}
		validBackends := map[string]bool{"sqlite": true, "bleve": true}
		if !validBackends[strings.ToLower(c.Search.BM25Backend)] {
			return fmt.Errorf("search.bm25_backend must be 'sqlite' or 'bleve', got %s", c.Search.BM25Backend)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file. A nil config and nil
// error means the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds default values for the chunking, llm_cache,
// deep_research and watcher fields left at their Go zero value, as happens
// when a config file predates a newly-added field. The other sections and
// deep_research.synthesis_temperature are not filled in. Returns the dotted
// names of the fields that were filled in.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Chunking.ClassSplitThreshold == 0 {
		c.Chunking.ClassSplitThreshold = defaults.Chunking.ClassSplitThreshold
		added = append(added, "chunking.class_split_threshold")
	}
	if c.LLMCache.TTLSeconds == 0 {
		c.LLMCache.TTLSeconds = defaults.LLMCache.TTLSeconds
		added = append(added, "llm_cache.ttl_seconds")
	}
	if c.LLMCache.MaxEntries == 0 {
		c.LLMCache.MaxEntries = defaults.LLMCache.MaxEntries
		added = append(added, "llm_cache.max_entries")
	}
	if c.LLMCache.SimilarityThreshold == 0 {
		c.LLMCache.SimilarityThreshold = defaults.LLMCache.SimilarityThreshold
		added = append(added, "llm_cache.similarity_threshold")
	}
	if c.LLMCache.MaxCacheableTemperature == 0 {
		c.LLMCache.MaxCacheableTemperature = defaults.LLMCache.MaxCacheableTemperature
		added = append(added, "llm_cache.max_cacheable_temperature")
	}
	if c.DeepResearch.MaxSubQuestions == 0 {
		c.DeepResearch.MaxSubQuestions = defaults.DeepResearch.MaxSubQuestions
		added = append(added, "deep_research.max_sub_questions")
	}
	if c.DeepResearch.ChunksPerSubquestion == 0 {
		c.DeepResearch.ChunksPerSubquestion = defaults.DeepResearch.ChunksPerSubquestion
		added = append(added, "deep_research.chunks_per_subquestion")
	}
	if c.DeepResearch.MaxTotalChunks == 0 {
		c.DeepResearch.MaxTotalChunks = defaults.DeepResearch.MaxTotalChunks
		added = append(added, "deep_research.max_total_chunks")
	}
	if c.DeepResearch.MaxFollowUpQueries == 0 {
		c.DeepResearch.MaxFollowUpQueries = defaults.DeepResearch.MaxFollowUpQueries
		added = append(added, "deep_research.max_follow_up_queries")
	}
	if c.DeepResearch.SynthesisMaxTokens == 0 {
		c.DeepResearch.SynthesisMaxTokens = defaults.DeepResearch.SynthesisMaxTokens
		added = append(added, "deep_research.synthesis_max_tokens")
	}
	if c.Watcher.DebounceSeconds == 0 {
		c.Watcher.DebounceSeconds = defaults.Watcher.DebounceSeconds
		added = append(added, "watcher.debounce_seconds")
	}

	return added
}
