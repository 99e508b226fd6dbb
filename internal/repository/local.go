package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"asset-store/internal/assets"
	"asset-store/internal/filesystem"
	"asset-store/internal/logging"
)

// Local stores files in a directory on the local filesystem.
type Local struct {
	root  string
	retry filesystem.RetryConfig
}

// NewLocal creates a repository rooted at root, creating the directory if
// needed.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repository root %s: %w", root, err)
	}
	if err := filesystem.EnsureDirectory(abs); err != nil {
		return nil, fmt.Errorf("create repository root %s: %w", abs, err)
	}
	return &Local{root: abs, retry: filesystem.DefaultRetryConfig()}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string {
	return l.root
}

// ResolvePath maps a repository-relative path to its absolute location.
func (l *Local) ResolvePath(p string) string {
	return filesystem.Resolve(p, l.root)
}

// resolve is ResolvePath for operations: an absolute path outside the root
// is rejected.
func (l *Local) resolve(p string) (string, error) {
	full := l.ResolvePath(p)
	if !filesystem.Within(l.root, full) {
		return "", assets.InvalidParameters("path", fmt.Sprintf("%s is outside repository root %s", p, l.root))
	}
	return full, nil
}

func (l *Local) Read(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := filesystem.OpenWithRetry(full, l.retry)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, assets.NotFound(path, err)
		}
		return nil, fmt.Errorf("open %s: %w", full, err)
	}
	return f, nil
}

func (l *Local) Write(ctx context.Context, path string, r io.Reader) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := filesystem.EnsureDirectory(filepath.Dir(full)); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", full, err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create %s: %w", full, err)
	}

	if _, err := io.Copy(f, contextReader{ctx: ctx, r: r}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", full, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", full, err)
	}
	return nil
}

func (l *Local) Move(ctx context.Context, oldPath, newPath string) error {
	src, err := l.resolve(oldPath)
	if err != nil {
		return err
	}
	dst, err := l.resolve(newPath)
	if err != nil {
		return err
	}

	if err := filesystem.EnsureFileExists(src); err != nil {
		if assets.IsNotFound(err) {
			return assets.NotFound(oldPath, err)
		}
		return err
	}
	if err := filesystem.EnsureDirectory(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", dst, err)
	}

	err = filesystem.RenameWithRetry(src, dst, l.retry)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("rename %s to %s: %w", src, dst, err)
	}

	logging.Debug("Cross-device move of %s, falling back to copy", src)
	if err := l.copyFile(ctx, src, dst); err != nil {
		return err
	}
	return l.remove(src)
}

func (l *Local) copyFile(ctx context.Context, src, dst string) error {
	in, err := filesystem.OpenWithRetry(src, l.retry)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, contextReader{ctx: ctx, r: in}); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

func (l *Local) Delete(_ context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	return l.remove(full)
}

func (l *Local) remove(full string) error {
	err := filesystem.RemoveWithRetry(full, l.retry)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("remove %s: %w", full, err)
}

func (l *Local) EnsureExists(_ context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := filesystem.EnsureFileExists(full); err != nil {
		if assets.IsNotFound(err) {
			return assets.NotFound(path, err)
		}
		return err
	}
	return nil
}

// List walks the root and returns every regular file with its path
// relative to the root.
func (l *Local) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		objects = append(objects, Object{Path: filepath.ToSlash(rel), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.root, err)
	}
	return objects, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
