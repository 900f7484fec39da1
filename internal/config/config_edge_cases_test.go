package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// =============================================================================
// FindProjectRoot edge cases
// =============================================================================

func TestFindProjectRoot_NonExistentDir_ReturnsPath(t *testing.T) {
	nonExistent := "/nonexistent/path/that/does/not/exist"

	root, err := FindProjectRoot(nonExistent)

	if err != nil {
		assert.Error(t, err)
	} else {
		assert.NotEmpty(t, root)
	}
}

func TestFindProjectRoot_DeepNesting_FindsGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	deepNested := filepath.Join(tmpDir, "a", "b", "c", "d", "e", "f", "g", "h")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	require.NoError(t, os.MkdirAll(deepNested, 0o755))

	root, err := FindProjectRoot(deepNested)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_RelativePath_ResolvesToAbsolute(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))

	oldWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldWd) }()
	require.NoError(t, os.Chdir(tmpDir))

	root, err := FindProjectRoot(".")

	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root), "root should be absolute path")
	expectedRoot, _ := filepath.EvalSymlinks(tmpDir)
	actualRoot, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, expectedRoot, actualRoot)
}

func TestFindProjectRoot_EmptyString_UsesCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))

	oldWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldWd) }()
	require.NoError(t, os.Chdir(tmpDir))

	root, err := FindProjectRoot("")

	require.NoError(t, err)
	expectedRoot, _ := filepath.EvalSymlinks(tmpDir)
	actualRoot, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, expectedRoot, actualRoot)
}

// =============================================================================
// Config merge edge cases
// =============================================================================

func TestLoad_MergeExcludePaths_AppendsToDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
indexer:
  exclude:
    - "**/.custom_ignore/**"
embeddings:
  provider: ollama
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".codewiki.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Contains(t, cfg.Indexer.Exclude, "**/node_modules/**", "default exclude should be preserved")
	assert.Contains(t, cfg.Indexer.Exclude, "**/.git/**", "default exclude should be preserved")
	assert.Contains(t, cfg.Indexer.Exclude, "**/.custom_ignore/**", "custom exclude should be added")
}

func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
chunking:
  class_split_threshold: 0
deep_research:
  max_sub_questions: 0
embeddings:
  provider: ollama
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".codewiki.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Chunking.ClassSplitThreshold, "zero should not override default class_split_threshold")
	assert.Equal(t, 4, cfg.DeepResearch.MaxSubQuestions, "zero should not override default max_sub_questions")
}

func TestLoad_NegativeValues_Validated(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
deep_research:
  max_sub_questions: -10
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".codewiki.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
	assert.Contains(t, err.Error(), "max_sub_questions must be positive")
}

func TestLoad_WeightsSumValidated(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.BM25Weight = 0.9
	cfg.Search.SemanticWeight = 0.9

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bm25_weight + search.semantic_weight must equal 1.0")
}

func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("test requires non-root user")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".codewiki.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1"), 0o000))
	defer func() { _ = os.Chmod(configPath, 0o644) }()

	cfg, err := Load(tmpDir)

	require.Error(t, err, "Load should fail for unreadable config file")
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read", "error should mention read failure")
}

// =============================================================================
// Config JSON marshaling edge cases
// =============================================================================

func TestConfig_JSON_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.BM25Weight = 0.4
	cfg.Search.SemanticWeight = 0.6
	cfg.Search.RRFConstant = 100
	cfg.Embeddings.Provider = "static"

	data, err := jsonMarshal(cfg)
	require.NoError(t, err)

	var parsed Config
	require.NoError(t, jsonUnmarshal(data, &parsed))

	assert.Equal(t, "static", parsed.Embeddings.Provider)
	assert.Equal(t, 0.4, parsed.Search.BM25Weight)
	assert.Equal(t, 0.6, parsed.Search.SemanticWeight)
	assert.Equal(t, 100, parsed.Search.RRFConstant)
}

func TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError(t *testing.T) {
	invalidJSON := []byte("{invalid json")

	var cfg Config
	err := jsonUnmarshal(invalidJSON, &cfg)

	require.Error(t, err, "unmarshal should fail for invalid JSON")
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_RejectsUnknownBM25Backend(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.BM25Backend = "elasticsearch"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bm25_backend")
}
