package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"asset-store/internal/assets"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return db
}

func newRecord(typ, subtype string, size int64) *assets.Record {
	return &assets.Record{
		Name:       "photo." + subtype,
		Repository: "local",
		Type:       typ,
		Subtype:    subtype,
		Size:       size,
	}
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		err       error
	}{
		{"successful query", "insert", nil},
		{"failed query", "insert", errors.New("test error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			recordQuery(tt.operation, time.Now(), tt.err)
		})
	}
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", FileName))
	if err == nil {
		t.Error("New should fail when the parent directory does not exist")
	}
}

func TestInsertAssignsIDAndIgnoresPath(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := newRecord("image", "png", 1024)
	rec.Path = "../../etc/passwd"
	rec.ID = "caller-chosen"

	if err := db.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rec.ID == "" || rec.ID == "caller-chosen" {
		t.Errorf("Insert should assign a fresh ID, got %q", rec.ID)
	}
	if rec.Path != "" {
		t.Errorf("Insert should discard the caller path, got %q", rec.Path)
	}

	got, err := db.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Path != "" || got.Type != "image" || got.Subtype != "png" || got.Size != 1024 {
		t.Errorf("Get() = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestInsertValidation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rec  *assets.Record
	}{
		{"missing repository", &assets.Record{Type: "image", Subtype: "png"}},
		{"missing type", &assets.Record{Repository: "local", Subtype: "png"}},
		{"missing subtype", &assets.Record{Repository: "local", Type: "image"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := db.Insert(ctx, tt.rec); !errors.Is(err, assets.ErrInvalidParameters) {
				t.Errorf("Insert() error = %v, want ErrInvalidParameters", err)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := newRecord("video", "mp4", 10)
	if err := db.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	rec.Path = assets.PrimaryPath(rec.ID, rec.Subtype)
	rec.HasThumbnail = true
	rec.Width, rec.Height, rec.Duration, rec.Size = 1920, 1080, 12.5, 4096
	if err := db.Update(ctx, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := db.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Path != rec.ID+".mp4" || !got.HasThumbnail || got.Width != 1920 ||
		got.Height != 1080 || got.Duration != 12.5 || got.Size != 4096 {
		t.Errorf("Get() after update = %+v", got)
	}

	missing := newRecord("image", "png", 1)
	missing.ID = "does-not-exist"
	if err := db.Update(ctx, missing); !assets.IsNotFound(err) {
		t.Errorf("Update(missing) error = %v, want NotFound", err)
	}
}

func TestDeleteAndGetMissing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := newRecord("image", "jpeg", 5)
	if err := db.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := db.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := db.Delete(ctx, rec.ID); !assets.IsNotFound(err) {
		t.Errorf("second Delete error = %v, want NotFound", err)
	}
	if _, err := db.Get(ctx, rec.ID); !assets.IsNotFound(err) {
		t.Errorf("Get(deleted) error = %v, want NotFound", err)
	}
}

func TestListAndInventory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inputs := []*assets.Record{
		newRecord("image", "png", 100),
		newRecord("image", "svg+xml", 50),
		newRecord("video", "mp4", 1000),
		newRecord("application", "pdf", 10),
	}
	inputs[0].HasThumbnail = true
	inputs[2].HasThumbnail = true

	for _, rec := range inputs {
		if err := db.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	records, err := db.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != len(inputs) {
		t.Fatalf("List() returned %d records, want %d", len(records), len(inputs))
	}

	inv, err := db.Inventory(ctx)
	if err != nil {
		t.Fatalf("Inventory failed: %v", err)
	}
	if inv.ByKind["image"] != 2 || inv.ByKind["video"] != 1 || inv.ByKind["other"] != 1 {
		t.Errorf("ByKind = %v", inv.ByKind)
	}
	if inv.TotalBytes != 1160 {
		t.Errorf("TotalBytes = %d, want 1160", inv.TotalBytes)
	}
	if inv.WithThumbnails != 2 {
		t.Errorf("WithThumbnails = %d, want 2", inv.WithThumbnails)
	}
}

func TestUpdateDBMetrics(t *testing.T) {
	db := setupTestDB(t)
	db.UpdateDBMetrics()
}

func TestPing(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
