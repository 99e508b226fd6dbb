package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"asset-store/internal/assets"
)

// Resolve maps p onto root. Relative paths are cleaned as if rooted, so
// ".." segments can never climb above root. Absolute paths are returned
// unchanged: callers that pass them are trusted to stay in bounds, and the
// lifecycle manager only ever passes relative, server-derived paths.
func Resolve(p, root string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.Clean(string(filepath.Separator)+p))
}

// Within reports whether target is root or lies beneath it.
func Within(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// EnsureDirectory creates dir and any missing parents. An existing directory
// is success; any other failure is returned.
func EnsureDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return nil
}

// EnsureFileExists fails with a NotFoundError naming path when it is
// absent; other stat failures are returned unchanged.
func EnsureFileExists(path string) error {
	_, err := StatWithRetry(path, DefaultRetryConfig())
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return assets.NotFound(path, err)
	}
	return err
}
