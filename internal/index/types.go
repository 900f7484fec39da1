// Package index implements the Indexer of spec.md §4.7: it discovers
// source files, classifies them against the prior run's IndexStatus,
// chunks and embeds the changed set, and persists both the Vector Store
// and the status file that drives the next incremental run.
package index

import (
	"github.com/codewiki-dev/codewiki/internal/model"
)

// CurrentSchemaVersion is bumped whenever IndexStatus's on-disk shape
// changes in a way that requires migrate_status to force a full rebuild.
const CurrentSchemaVersion = 1

// ProgressFunc is the optional callback spec.md §4.7 describes: invoked
// before each file is processed and once more after the final save. A
// panic inside the callback is recovered and logged — the Indexer itself
// must never fail because of a misbehaving observer.
type ProgressFunc func(message string, current, total int)

// Config holds the `indexing.*` and `scan.*` keys from spec.md §6.
type Config struct {
	RootDir         string
	DataDir         string
	IncludeGlobs    []string
	ExcludeGlobs    []string
	MaxFileSizeByte int64
}

// fileClassification is the per-file outcome of comparing a scan against
// the prior IndexStatus.
type fileClassification int

const (
	classUnchanged fileClassification = iota
	classModified
	classNew
	classDeleted
)

// Result summarizes one index() call for callers that don't need the full
// IndexStatus.
type Result struct {
	Status       model.IndexStatus
	FilesAdded   int
	FilesDeleted int
	FullRebuild  bool
}
