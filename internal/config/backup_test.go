package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempXDG(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	orig := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Cleanup(func() { os.Setenv("XDG_CONFIG_HOME", orig) })
	return tmpDir
}

func TestBackupUserConfig(t *testing.T) {
	tmpDir := withTempXDG(t)
	configDir := filepath.Join(tmpDir, "codewiki")
	configPath := filepath.Join(configDir, "config.yaml")

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupUserConfig()
		require.NoError(t, err)
		assert.Empty(t, backupPath)
	})

	t.Run("backup existing config", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(configDir, 0755))
		testContent := "version: 1\nembeddings:\n  provider: ollama\n"
		require.NoError(t, os.WriteFile(configPath, []byte(testContent), 0644))

		backupPath, err := BackupUserConfig()
		require.NoError(t, err)
		require.NotEmpty(t, backupPath)

		backupContent, err := os.ReadFile(backupPath)
		require.NoError(t, err)
		assert.Equal(t, testContent, string(backupContent))
		assert.True(t, filepath.IsAbs(backupPath))
	})
}

func TestListUserConfigBackups(t *testing.T) {
	tmpDir := withTempXDG(t)
	configDir := filepath.Join(tmpDir, "codewiki")
	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	t.Run("no backups exist", func(t *testing.T) {
		backups, err := ListUserConfigBackups()
		require.NoError(t, err)
		assert.Empty(t, backups)
	})

	t.Run("list multiple backups", func(t *testing.T) {
		timestamps := []string{"20260101-100000", "20260101-110000", "20260101-120000"}
		for _, ts := range timestamps {
			backupName := filepath.Join(configDir, "config.yaml.bak."+ts)
			require.NoError(t, os.WriteFile(backupName, []byte("test"), 0644))
			time.Sleep(10 * time.Millisecond)
		}

		backups, err := ListUserConfigBackups()
		require.NoError(t, err)
		assert.Len(t, backups, 3)

		for i := 1; i < len(backups); i++ {
			info1, _ := os.Stat(backups[i-1])
			info2, _ := os.Stat(backups[i])
			assert.False(t, info1.ModTime().Before(info2.ModTime()), "backups not sorted newest-first")
		}
	})

	t.Run("cleanup old backups", func(t *testing.T) {
		require.NoError(t, os.WriteFile(configPath, []byte("test config"), 0644))

		for i := 0; i < 4; i++ {
			_, err := BackupUserConfig()
			require.NoError(t, err)
			time.Sleep(10 * time.Millisecond)
		}

		backups, err := ListUserConfigBackups()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(backups), maxBackups)
	})
}

func TestRestoreUserConfig(t *testing.T) {
	withTempXDG(t)
	configPath := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("version: 1\n"), 0644))

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(configPath, []byte("version: 2\n"), 0644))

	require.NoError(t, RestoreUserConfig(backupPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestMergeNewDefaults(t *testing.T) {
	t.Run("adds missing fields", func(t *testing.T) {
		cfg := &Config{Version: 1}

		added := cfg.MergeNewDefaults()

		assert.Equal(t, 200, cfg.Chunking.ClassSplitThreshold)
		assert.Equal(t, 4, cfg.DeepResearch.MaxSubQuestions)
		assert.Equal(t, float64(2), cfg.Watcher.DebounceSeconds)
		assert.Contains(t, added, "chunking.class_split_threshold")
		assert.Contains(t, added, "deep_research.max_sub_questions")
		assert.Contains(t, added, "watcher.debounce_seconds")
	})

	t.Run("preserves existing values", func(t *testing.T) {
		cfg := &Config{
			Version:      1,
			Chunking:     ChunkingConfig{ClassSplitThreshold: 50},
			DeepResearch: DeepResearchConfig{MaxSubQuestions: 8},
		}

		added := cfg.MergeNewDefaults()

		assert.Equal(t, 50, cfg.Chunking.ClassSplitThreshold)
		assert.Equal(t, 8, cfg.DeepResearch.MaxSubQuestions)
		assert.NotContains(t, added, "chunking.class_split_threshold")
		assert.NotContains(t, added, "deep_research.max_sub_questions")
	})

	t.Run("returns empty for a complete config", func(t *testing.T) {
		cfg := NewConfig()
		added := cfg.MergeNewDefaults()
		assert.Empty(t, added)
	})
}

func TestWriteYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := NewConfig()
	cfg.Embeddings.Model = "test-model"

	require.NoError(t, cfg.WriteYAML(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "model: test-model")
	assert.Contains(t, string(data), "class_split_threshold: 200")
}
