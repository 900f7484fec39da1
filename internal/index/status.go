package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codewiki-dev/codewiki/internal/model"
)

func statusPath(dataDir string) string {
	return filepath.Join(dataDir, "status.json")
}

// loadStatus reads the prior IndexStatus from disk. A missing file is not
// an error — the caller treats it as "no prior status", which forces a
// full rebuild by virtue of every file classifying as new.
func loadStatus(dataDir string) (model.IndexStatus, bool, error) {
	data, err := os.ReadFile(statusPath(dataDir))
	if os.IsNotExist(err) {
		return model.IndexStatus{}, false, nil
	}
	if err != nil {
		return model.IndexStatus{}, false, fmt.Errorf("index: read status.json: %w", err)
	}
	var status model.IndexStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return model.IndexStatus{}, false, nil // corrupted status file: treat as absent
	}
	return status, true, nil
}

// saveStatus persists status via write-then-rename, satisfying spec.md
// §5's single-writer-atomicity requirement for the IndexStatus file.
func saveStatus(dataDir string, status model.IndexStatus) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("index: create data dir: %w", err)
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("index: marshal status.json: %w", err)
	}
	tmp := statusPath(dataDir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("index: write status.json temp file: %w", err)
	}
	if err := os.Rename(tmp, statusPath(dataDir)); err != nil {
		return fmt.Errorf("index: rename status.json: %w", err)
	}
	return nil
}

// needsMigration implements `_needs_migration` from spec.md §4.7.
func needsMigration(status model.IndexStatus) bool {
	return status.SchemaVersion < CurrentSchemaVersion
}

// migrateStatus implements `_migrate_status`: it bumps the schema version
// and reports whether the caller must switch into full-rebuild mode. The
// only schema version to date is 1, so any older (including the zero
// value for "absent") status forces a rebuild.
func migrateStatus(status model.IndexStatus) (migrated model.IndexStatus, requiresFullRebuild bool) {
	if status.SchemaVersion >= CurrentSchemaVersion {
		return status, false
	}
	status.SchemaVersion = CurrentSchemaVersion
	return status, true
}
