package lifecycle

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"asset-store/internal/assets"
	"asset-store/internal/repository"
)

// memStore is an in-memory RecordStore.
type memStore struct {
	mu        sync.Mutex
	records   map[string]assets.Record
	failWrite error
	lastRun   time.Time
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]assets.Record)}
}

func (s *memStore) Insert(_ context.Context, rec *assets.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uuid.NewString()
	rec.Path = ""
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	s.records[rec.ID] = *rec
	return nil
}

func (s *memStore) Update(_ context.Context, rec *assets.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	if _, ok := s.records[rec.ID]; !ok {
		return assets.NotFound(rec.ID, nil)
	}
	rec.UpdatedAt = time.Now()
	s.records[rec.ID] = *rec
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return assets.NotFound(id, nil)
	}
	delete(s.records, id)
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*assets.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, assets.NotFound(id, nil)
	}
	return &rec, nil
}

func (s *memStore) List(_ context.Context) ([]assets.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]assets.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SetLastHousekeeping(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = t
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakeThumbnailer writes a small PNG at the requested width.
type fakeThumbnailer struct {
	mu        sync.Mutex
	fail      error
	probe     assets.Metadata
	probeErr  error
	generated int
}

func (f *fakeThumbnailer) Probe(_ context.Context, src io.Reader, _ assets.Kind) (assets.Metadata, error) {
	if _, err := io.Copy(io.Discard, src); err != nil {
		return assets.Metadata{}, err
	}
	return f.probe, f.probeErr
}

func (f *fakeThumbnailer) GenerateThumbnail(_ context.Context, src io.Reader, dest string, width int, _ assets.Kind) error {
	if _, err := io.Copy(io.Discard, src); err != nil {
		return err
	}
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		// A tool that dies mid-write leaves a partial file behind.
		_ = os.WriteFile(dest, []byte("partial"), 0o644)
		return fail
	}

	img := image.NewRGBA(image.Rect(0, 0, width, width/2))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return err
	}
	f.mu.Lock()
	f.generated++
	f.mu.Unlock()
	return out.Close()
}

func (f *fakeThumbnailer) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeThumbnailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generated
}

var errToolCrashed = errors.New("ffmpeg exited with status 1")

type fixture struct {
	mgr    *Manager
	store  *memStore
	thumbs *fakeThumbnailer
	local  *repository.Local
	tmp    string
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	root := t.TempDir()
	cfg := Config{
		ThumbnailDir:      root + "/thumbnails",
		ThumbnailWidth:    320,
		ThumbnailExt:      "png",
		DefaultRepository: "local",
		MaxUploadSize:     1 << 20,
		AcceptedMimeTypes: []string{"image/*", "video/*", "audio/*"},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	store := newMemStore()
	thumbs := &fakeThumbnailer{probe: assets.Metadata{Width: 1024, Height: 768}}
	mgr, err := NewManager(cfg, store, thumbs)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	local, err := repository.NewLocal(root + "/assets")
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	if err := mgr.RegisterRepository("local", local); err != nil {
		t.Fatalf("RegisterRepository failed: %v", err)
	}

	return &fixture{mgr: mgr, store: store, thumbs: thumbs, local: local, tmp: t.TempDir()}
}

// upload writes size bytes to a temp file and describes it as mimeType.
func (f *fixture) upload(t *testing.T, mimeType string, size int) *assets.UploadedFile {
	t.Helper()
	tmp, err := os.CreateTemp(f.tmp, "upload-*")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if _, err := tmp.Write(data); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatalf("close upload: %v", err)
	}
	return &assets.UploadedFile{TempPath: tmp.Name(), MimeType: mimeType, Size: int64(size), OriginalName: "upload.bin"}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// backdate makes path look older than any orphan grace period in use.
func backdate(t *testing.T, path string) {
	t.Helper()
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
}
