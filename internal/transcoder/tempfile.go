package transcoder

import (
	"fmt"
	"io"
	"os"

	"asset-store/internal/logging"
	"asset-store/internal/metrics"
)

// WithTempFile copies src into a new temporary file in dir, calls fn with
// the file's path and size, and removes the file on every return path.
func WithTempFile(dir, pattern string, src io.Reader, fn func(path string, size int64) error) error {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	metrics.TempFilesActive.Inc()

	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove temp file %s: %v", path, err)
		}
		metrics.TempFilesActive.Dec()
	}()

	size, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("materialize temp file: %w", err)
	}

	return fn(path, size)
}
