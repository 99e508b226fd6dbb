package repository

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"asset-store/internal/assets"
)

func TestRegistryRegister(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	tests := []struct {
		name    string
		regName string
		repo    Repository
		wantErr error
	}{
		{"first registration", "local", local, nil},
		{"duplicate name", "local", local, assets.ErrRepositoryAlreadyRegistered},
		{"nil repository", "other", nil, assets.ErrInvalidParameters},
		{"typed nil local", "other", (*Local)(nil), assets.ErrInvalidParameters},
		{"typed nil s3", "other", (*S3)(nil), assets.ErrInvalidParameters},
		{"empty name", "", local, assets.ErrInvalidParameters},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.regName, tt.repo)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Register() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if names := reg.Names(); len(names) != 1 || names[0] != "local" {
		t.Errorf("Names() = %v, want [local]", names)
	}
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry()
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	if err := reg.Register("local", local); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := reg.Get("local"); err != nil {
		t.Errorf("Get(local) error = %v", err)
	}
	if _, err := reg.Get("missing"); !errors.Is(err, assets.ErrRepositoryNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrRepositoryNotFound", err)
	}
}

func TestRegistryInstrumentsOperations(t *testing.T) {
	reg := NewRegistry()
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	if err := reg.Register("local", local); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	repo, _ := reg.Get("local")
	ctx := context.Background()

	if err := repo.Write(ctx, "a.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rc, err := repo.Read(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("Read() = %q, want hello", data)
	}
	if err := repo.EnsureExists(ctx, "missing.txt"); !assets.IsNotFound(err) {
		t.Errorf("EnsureExists(missing) error = %v, want NotFound", err)
	}
}

// writeOnly implements Repository but not Lister.
type writeOnly struct{ Repository }

func TestRegistryListUnsupported(t *testing.T) {
	reg := NewRegistry()
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	if err := reg.Register("plain", writeOnly{local}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	repo, _ := reg.Get("plain")

	lister, ok := repo.(Lister)
	if !ok {
		t.Fatal("registered repositories should expose List")
	}
	if _, err := lister.List(context.Background()); !errors.Is(err, assets.ErrOperationDisabled) {
		t.Errorf("List() error = %v, want ErrOperationDisabled", err)
	}
}
