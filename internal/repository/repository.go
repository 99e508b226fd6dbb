package repository

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"

	"asset-store/internal/assets"
	"asset-store/internal/metrics"
)

// Repository stores primary asset files under logical, repository-relative
// paths.
//
// Read fails with assets.ErrNotFound when the path is absent. The returned
// stream is readable once and must be closed.
//
// Write creates parent locations as needed and drains r. A failed write may
// leave a partial file behind; cleanup belongs to the caller.
//
// Move fails with assets.ErrNotFound when oldPath is absent.
//
// Delete of an absent path succeeds.
//
// EnsureExists fails with assets.ErrNotFound when the path is absent.
type Repository interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, r io.Reader) error
	Move(ctx context.Context, oldPath, newPath string) error
	Delete(ctx context.Context, path string) error
	EnsureExists(ctx context.Context, path string) error
}

// Object is a stored file reported by a Lister.
type Object struct {
	Path    string
	ModTime time.Time
}

// Lister is implemented by repositories that can enumerate their files.
// Housekeeping uses it to find orphaned primaries.
type Lister interface {
	List(ctx context.Context) ([]Object, error)
}

// Registry holds repositories by unique name. Every registered repository is
// wrapped so its operations are recorded in the repository metrics under the
// registered name.
type Registry struct {
	mu    sync.RWMutex
	repos map[string]Repository
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{repos: make(map[string]Repository)}
}

// Register adds repo under name. Empty names and nil repositories,
// including typed nil pointers, are rejected as invalid; a duplicate name
// fails with assets.ErrRepositoryAlreadyRegistered.
func (r *Registry) Register(name string, repo Repository) error {
	if name == "" {
		return assets.InvalidParameters("name", "repository name is required")
	}
	if isNil(repo) {
		return assets.InvalidParameters("repository", fmt.Sprintf("repository %q is nil", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.repos[name]; exists {
		return fmt.Errorf("%w: %s", assets.ErrRepositoryAlreadyRegistered, name)
	}
	r.repos[name] = &instrumented{name: name, next: repo}
	return nil
}

// isNil reports whether repo is nil or an interface holding a nil pointer,
// map, func, chan or slice.
func isNil(repo Repository) bool {
	if repo == nil {
		return true
	}
	v := reflect.ValueOf(repo)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Get returns the repository registered under name, or
// assets.ErrRepositoryNotFound.
func (r *Registry) Get(name string) (Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repo, ok := r.repos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", assets.ErrRepositoryNotFound, name)
	}
	return repo, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.repos))
	for name := range r.repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// instrumented records duration and errors for every operation.
type instrumented struct {
	name string
	next Repository
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	// NotFound from existence checks is an expected answer, not a failure.
	if assets.IsNotFound(err) {
		err = nil
	}
	metrics.ObserveRepository(i.name, op, time.Since(start).Seconds(), err)
}

func (i *instrumented) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := i.next.Read(ctx, path)
	i.observe("read", start, err)
	return rc, err
}

func (i *instrumented) Write(ctx context.Context, path string, r io.Reader) error {
	start := time.Now()
	err := i.next.Write(ctx, path, r)
	i.observe("write", start, err)
	return err
}

func (i *instrumented) Move(ctx context.Context, oldPath, newPath string) error {
	start := time.Now()
	err := i.next.Move(ctx, oldPath, newPath)
	i.observe("move", start, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := i.next.Delete(ctx, path)
	i.observe("delete", start, err)
	return err
}

func (i *instrumented) EnsureExists(ctx context.Context, path string) error {
	start := time.Now()
	err := i.next.EnsureExists(ctx, path)
	i.observe("ensure_exists", start, err)
	return err
}

// List forwards to the wrapped repository, failing with
// assets.ErrOperationDisabled when it cannot enumerate.
func (i *instrumented) List(ctx context.Context) ([]Object, error) {
	lister, ok := i.next.(Lister)
	if !ok {
		return nil, fmt.Errorf("list repository %s: %w", i.name, assets.ErrOperationDisabled)
	}
	start := time.Now()
	objects, err := lister.List(ctx)
	i.observe("list", start, err)
	return objects, err
}
