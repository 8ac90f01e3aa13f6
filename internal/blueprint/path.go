package blueprint

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath converts a blueprint target path into the canonical form
// used as the grouping key: slash separated, cleaned, relative to the
// project root and free of traversal segments.
func NormalizePath(p string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if trimmed == "" {
		return "", fmt.Errorf("invalid path: empty")
	}
	if strings.HasPrefix(trimmed, "/") {
		return "", fmt.Errorf("invalid path: must be relative, got absolute path %q", p)
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." {
		return "", fmt.Errorf("invalid path: empty or current directory")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid path: path traversal not allowed in %q", p)
	}
	return cleaned, nil
}

// IsWithin reports whether child lies strictly inside dir.
func IsWithin(child, dir string) bool {
	return strings.HasPrefix(child, dir+"/")
}
