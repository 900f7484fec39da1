package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateID computes the stable chunk ID per spec.md §4.2/§9:
// sha256("{rel_path}:{name}:{start_line_0_based}")[:16].
//
// The 0-based line (tree-sitter's start_point.row) is used deliberately,
// even though CodeChunk.StartLine is reported 1-based to callers, to stay
// compatible with IDs already persisted by earlier schema versions.
func GenerateID(relPath, name string, startLine0Based int) string {
	key := fmt.Sprintf("%s:%s:%d", relPath, name, startLine0Based)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
