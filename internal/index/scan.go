package index

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/codewiki-dev/codewiki/internal/gitignore"
	"github.com/codewiki-dev/codewiki/internal/lang"
	"github.com/codewiki-dev/codewiki/internal/model"
)

// defaultExcludeDirs mirrors the teacher scanner's always-skip directory
// list — these never carry indexable source regardless of configuration.
var defaultExcludeDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".codewiki":    true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".venv":        true,
	"__pycache__":  true,
}

// scan walks cfg.RootDir and returns every file the Parser recognizes that
// survives the include/exclude globs and the repository's .gitignore
// rules. Only the Parser's registered extensions are candidates, per
// spec.md §4.7.
func scan(cfg Config, registry *lang.Registry) ([]model.FileInfo, error) {
	matcher := gitignore.New()
	if data, err := os.ReadFile(filepath.Join(cfg.RootDir, ".gitignore")); err == nil {
		for _, pattern := range gitignore.ParsePatterns(string(data)) {
			matcher.AddPattern(pattern)
		}
	}

	p := lang.NewParserWithRegistry(registry)
	defer p.Close()

	var files []model.FileInfo
	walkErr := filepath.WalkDir(cfg.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole scan
		}
		rel, relErr := filepath.Rel(cfg.RootDir, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if defaultExcludeDirs[d.Name()] || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.Match(rel, false) {
			return nil
		}
		if !matchesGlobs(rel, cfg.IncludeGlobs, cfg.ExcludeGlobs) {
			return nil
		}
		if _, ok := registry.DetectLanguage(path); !ok {
			return nil
		}

		if cfg.MaxFileSizeByte > 0 {
			if info, statErr := d.Info(); statErr == nil && info.Size() > cfg.MaxFileSizeByte {
				return nil
			}
		}

		fi, infoErr := p.FileInfo(path, cfg.RootDir)
		if infoErr != nil {
			return nil
		}
		files = append(files, fi)
		return nil
	})
	return files, walkErr
}

// matchesGlobs applies spec.md §4.7's "fnmatch-style include/exclude
// globs" rule: a file passes if it matches some include pattern (or no
// include patterns are configured) and matches no exclude pattern.
func matchesGlobs(relPath string, include, exclude []string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range exclude {
		if globMatch(pattern, relPath) || globMatch(pattern, base) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if globMatch(pattern, relPath) || globMatch(pattern, base) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	if ok, err := filepath.Match(pattern, name); err == nil && ok {
		return true
	}
	// filepath.Match's "*" does not cross path separators; for patterns like
	// "**/*.test.go", retry the match with the leading "**/" removed.
	trimmed := strings.TrimPrefix(pattern, "**/")
	if trimmed != pattern {
		if ok, err := filepath.Match(trimmed, name); err == nil && ok {
			return true
		}
	}
	return false
}
