package mission

import (
	"os"
	"path/filepath"
	"strings"
)

// logicalPrefix marks a write-target as a logical name rather than a
// filesystem path. Logical targets are taken verbatim.
const logicalPrefix = "logical:"

// NormalizeWriteTarget canonicalizes a write-target key so that equivalent
// spellings of the same resource collide in the lock table. Logical targets
// pass through untouched; path targets are tilde-expanded and made absolute.
func NormalizeWriteTarget(target string) string {
	cleaned := strings.TrimSpace(target)
	if strings.HasPrefix(cleaned, logicalPrefix) {
		return cleaned
	}

	if cleaned == "~" || strings.HasPrefix(cleaned, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			cleaned = filepath.Join(home, strings.TrimPrefix(cleaned, "~"))
		}
	}

	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return filepath.Clean(cleaned)
	}
	return abs
}
