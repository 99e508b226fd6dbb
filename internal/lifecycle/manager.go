package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"asset-store/internal/assets"
	"asset-store/internal/filesystem"
	"asset-store/internal/logging"
	"asset-store/internal/metrics"
	"asset-store/internal/repository"
)

// RecordStore persists asset records. Insert assigns the record ID and
// clears Path. Get, Update and Delete fail with assets.ErrNotFound for an
// unknown ID.
type RecordStore interface {
	Insert(ctx context.Context, rec *assets.Record) error
	Update(ctx context.Context, rec *assets.Record) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*assets.Record, error)
	List(ctx context.Context) ([]assets.Record, error)
}

// Thumbnailer extracts metadata and renders thumbnails from media streams.
type Thumbnailer interface {
	Probe(ctx context.Context, src io.Reader, kind assets.Kind) (assets.Metadata, error)
	GenerateThumbnail(ctx context.Context, src io.Reader, dest string, width int, kind assets.Kind) error
}

// Config holds the options the Manager consumes.
type Config struct {
	ThumbnailDir      string
	ThumbnailWidth    int
	ThumbnailExt      string
	DefaultRepository string
	MaxUploadSize     int64 // 0 means unlimited
	AcceptedMimeTypes []string
	FailurePolicy     FailurePolicy
}

// Manager sequences the writes, thumbnail renders, probes and record
// updates of every asset operation, and owns the repository registry.
//
// Operations on different assets may run concurrently. Operations on the
// same asset must be serialized by the caller.
type Manager struct {
	cfg   Config
	store RecordStore
	media Thumbnailer
	repos *repository.Registry
	retry filesystem.RetryConfig
	log   *logging.Logger
}

// NewManager validates cfg and creates the thumbnail directory.
func NewManager(cfg Config, store RecordStore, media Thumbnailer) (*Manager, error) {
	if store == nil {
		return nil, assets.InvalidParameters("store", "record store is required")
	}
	if media == nil {
		return nil, assets.InvalidParameters("thumbnailer", "thumbnailer is required")
	}
	if cfg.ThumbnailDir == "" {
		return nil, assets.InvalidParameters("thumbnailDirectory", "thumbnail directory is required")
	}
	if cfg.ThumbnailWidth <= 0 {
		return nil, assets.InvalidParameters("thumbnailWidthPixels", "must be positive")
	}
	if cfg.DefaultRepository == "" {
		return nil, assets.InvalidParameters("defaultRepositoryName", "default repository is required")
	}

	cfg.ThumbnailExt = assets.NormalizeExtension(cfg.ThumbnailExt)
	if cfg.ThumbnailExt == "" {
		cfg.ThumbnailExt = ".jpg"
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = PolicyRollback
	}

	dir, err := filepath.Abs(cfg.ThumbnailDir)
	if err != nil {
		return nil, fmt.Errorf("resolve thumbnail directory: %w", err)
	}
	if err := filesystem.EnsureDirectory(dir); err != nil {
		return nil, fmt.Errorf("create thumbnail directory: %w", err)
	}
	cfg.ThumbnailDir = dir

	return &Manager{
		cfg:   cfg,
		store: store,
		media: media,
		repos: repository.NewRegistry(),
		retry: filesystem.DefaultRetryConfig(),
		log:   logging.With("lifecycle"),
	}, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Store returns the record store.
func (m *Manager) Store() RecordStore {
	return m.store
}

// RegisterRepository adds a storage backend under name. Duplicate names
// fail with assets.ErrRepositoryAlreadyRegistered.
func (m *Manager) RegisterRepository(name string, repo repository.Repository) error {
	if err := m.repos.Register(name, repo); err != nil {
		return err
	}
	m.log.Info("Registered repository %q", name)
	return nil
}

// Repository looks up a registered backend, failing with
// assets.ErrRepositoryNotFound.
func (m *Manager) Repository(name string) (repository.Repository, error) {
	return m.repos.Get(name)
}

// Repositories returns the registered backend names.
func (m *Manager) Repositories() []string {
	return m.repos.Names()
}

// ThumbnailPath returns where the thumbnail of asset id lives.
func (m *Manager) ThumbnailPath(id string) string {
	return filepath.Join(m.cfg.ThumbnailDir, assets.ThumbnailName(id, m.cfg.ThumbnailExt))
}

// upload is a validated UploadedFile.
type upload struct {
	file    *assets.UploadedFile
	typ     string
	subtype string
}

func (m *Manager) validateUpload(file *assets.UploadedFile) (*upload, error) {
	if file == nil || file.TempPath == "" {
		return nil, assets.InvalidParameters("file", "an uploaded file is required")
	}
	typ, subtype, err := assets.ParseMimeType(file.MimeType)
	if err != nil {
		return nil, err
	}
	if !assets.MimeAccepted(m.cfg.AcceptedMimeTypes, typ+"/"+subtype) {
		return nil, assets.InvalidParameters("mimeType", fmt.Sprintf("%s/%s is not accepted", typ, subtype))
	}
	if m.cfg.MaxUploadSize > 0 && file.Size > m.cfg.MaxUploadSize {
		return nil, assets.InvalidParameters("file", fmt.Sprintf("size %d exceeds limit of %d bytes", file.Size, m.cfg.MaxUploadSize))
	}
	return &upload{file: file, typ: typ, subtype: subtype}, nil
}

func (m *Manager) removeUpload(file *assets.UploadedFile) {
	if file == nil || file.TempPath == "" {
		return
	}
	if err := os.Remove(file.TempPath); err != nil && !os.IsNotExist(err) {
		m.log.Warn("Failed to remove uploaded temp file %s: %v", file.TempPath, err)
	}
}

// observe records the outcome of a lifecycle operation.
func observe(op string, start time.Time, err error) {
	metrics.LifecycleOperationsTotal.WithLabelValues(op, metrics.Status(err)).Inc()
	metrics.LifecycleOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Create stores a new asset: it persists a provisional record, writes the
// upload to <id>.<subtype> in the record's repository, renders the
// thumbnail when one applies, probes metadata and persists the final
// fields. The uploaded temp file is removed on every path.
//
// A failed write or record update removes the provisional record and any
// partial file. A failed thumbnail does the same under PolicyRollback;
// under PolicyKeep the asset is kept with HasThumbnail=false.
func (m *Manager) Create(ctx context.Context, rec *assets.Record, file *assets.UploadedFile) (_ *assets.Record, err error) {
	defer func(start time.Time) { observe("create", start, err) }(time.Now())
	defer m.removeUpload(file)

	if rec == nil {
		return nil, assets.InvalidParameters("record", "a record is required")
	}
	up, err := m.validateUpload(file)
	if err != nil {
		return nil, err
	}

	if rec.Repository == "" {
		rec.Repository = m.cfg.DefaultRepository
	}
	repo, err := m.repos.Get(rec.Repository)
	if err != nil {
		return nil, err
	}

	if rec.Name == "" {
		rec.Name = file.OriginalName
	}
	rec.Type, rec.Subtype = up.typ, up.subtype
	rec.HasThumbnail = assets.HasThumbnail(up.typ, up.subtype)
	rec.Path = ""
	rec.Width, rec.Height, rec.Duration = 0, 0, 0

	if err := m.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert provisional record: %w", err)
	}
	m.transition(rec.ID, StateUncommitted)

	rollback := func(cause error) error {
		return errors.Join(cause, m.rollbackCreate(context.WithoutCancel(ctx), repo, rec))
	}

	rec.Path = assets.PrimaryPath(rec.ID, rec.Subtype)
	if err := m.writePrimary(ctx, repo, rec, up.file); err != nil {
		return nil, rollback(err)
	}
	m.removeUpload(file)

	if err := m.renderThumbnail(ctx, repo, rec); err != nil {
		return nil, rollback(err)
	}

	m.probe(ctx, repo, rec)

	if err := m.store.Update(ctx, rec); err != nil {
		return nil, rollback(fmt.Errorf("persist record %s: %w", rec.ID, err))
	}
	m.transition(rec.ID, StateActive)
	m.log.Info("Created asset %s (%s, %d bytes, thumbnail=%v)", rec.ID, rec.MimeType(), rec.Size, rec.HasThumbnail)
	return rec, nil
}

// writePrimary copies the upload into repo at rec.Path and sets rec.Size to
// the bytes actually written.
func (m *Manager) writePrimary(ctx context.Context, repo repository.Repository, rec *assets.Record, file *assets.UploadedFile) error {
	src, err := os.Open(file.TempPath)
	if err != nil {
		if os.IsNotExist(err) {
			return assets.NotFound(file.TempPath, err)
		}
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	counter := &countingReader{r: src}
	if m.cfg.MaxUploadSize > 0 {
		// One extra byte so an oversized stream is detectable.
		counter.r = io.LimitReader(src, m.cfg.MaxUploadSize+1)
	}

	if err := repo.Write(ctx, rec.Path, counter); err != nil {
		return fmt.Errorf("write %s to repository %s: %w", rec.Path, rec.Repository, err)
	}
	if m.cfg.MaxUploadSize > 0 && counter.n > m.cfg.MaxUploadSize {
		return assets.InvalidParameters("file", fmt.Sprintf("upload exceeds limit of %d bytes", m.cfg.MaxUploadSize))
	}

	rec.Size = counter.n
	metrics.RepositoryBytesWritten.WithLabelValues(rec.Repository).Add(float64(counter.n))
	m.transition(rec.ID, StateStored)
	return nil
}

// renderThumbnail generates the thumbnail when rec calls for one. Under
// PolicyKeep a failure clears HasThumbnail and returns nil.
func (m *Manager) renderThumbnail(ctx context.Context, repo repository.Repository, rec *assets.Record) error {
	if !rec.HasThumbnail {
		m.transition(rec.ID, StateNoThumbnail)
		return nil
	}

	err := m.generateThumbnail(ctx, repo, rec)
	if err == nil {
		m.transition(rec.ID, StateThumbnailed)
		return nil
	}

	if m.cfg.FailurePolicy == PolicyKeep {
		m.log.Warn("Keeping asset %s without thumbnail: %v", rec.ID, err)
		rec.HasThumbnail = false
		m.transition(rec.ID, StateNoThumbnail)
		return nil
	}
	return err
}

// generateThumbnail streams the primary file of rec into the thumbnailer.
// Failures are returned as *assets.ThumbnailError.
func (m *Manager) generateThumbnail(ctx context.Context, repo repository.Repository, rec *assets.Record) error {
	src, err := repo.Read(ctx, rec.Path)
	if err != nil {
		return &assets.ThumbnailError{AssetID: rec.ID, Err: err}
	}
	defer src.Close()

	if err := m.media.GenerateThumbnail(ctx, src, m.ThumbnailPath(rec.ID), m.cfg.ThumbnailWidth, rec.Kind()); err != nil {
		return &assets.ThumbnailError{AssetID: rec.ID, Err: err}
	}
	return nil
}

// probe fills resolution and duration. Failures are logged, never returned.
func (m *Manager) probe(ctx context.Context, repo repository.Repository, rec *assets.Record) {
	if !assets.ShouldProbe(rec.Type) {
		return
	}

	src, err := repo.Read(ctx, rec.Path)
	if err != nil {
		m.log.Warn("Metadata probe skipped for %s: %v", rec.ID, err)
		return
	}
	defer src.Close()

	meta, err := m.media.Probe(ctx, src, rec.Kind())
	if err != nil {
		m.log.Warn("Metadata probe failed for %s: %v", rec.ID, err)
		return
	}

	rec.Width, rec.Height = meta.Width, meta.Height
	if rec.Kind() != assets.KindImage {
		rec.Duration = meta.Duration
	}
}

// rollbackCreate removes everything a failed create wrote. Every step runs
// even if an earlier one fails.
func (m *Manager) rollbackCreate(ctx context.Context, repo repository.Repository, rec *assets.Record) error {
	var errs []error

	if err := m.removeThumbnail(rec.ID); err != nil {
		errs = append(errs, err)
	}
	if rec.Path != "" {
		if err := repo.Delete(ctx, rec.Path); err != nil {
			errs = append(errs, fmt.Errorf("rollback primary file: %w", err))
		}
	}
	if err := m.store.Delete(ctx, rec.ID); err != nil && !assets.IsNotFound(err) {
		errs = append(errs, fmt.Errorf("rollback record: %w", err))
	}

	err := errors.Join(errs...)
	metrics.LifecycleRollbacksTotal.WithLabelValues("create", metrics.Status(err)).Inc()
	if err != nil {
		m.log.Error("Rollback of asset %s incomplete: %v", rec.ID, err)
	} else {
		m.log.Info("Rolled back asset %s", rec.ID)
	}
	return err
}

// Replace swaps the file of an existing asset, keeping its ID. The stored
// primary file and thumbnail are deleted first, then the upload goes
// through the same write, thumbnail and probe steps as Create. Any Path on
// rec is ignored; it is recomputed from the new subtype.
//
// If the new write or, under PolicyRollback, the new thumbnail fails, the
// newly written files are removed and the error is returned. The stored
// record is left as it was, so housekeeping reports the asset missing.
func (m *Manager) Replace(ctx context.Context, rec *assets.Record, file *assets.UploadedFile) (_ *assets.Record, err error) {
	defer func(start time.Time) { observe("replace", start, err) }(time.Now())
	defer m.removeUpload(file)

	if rec == nil || rec.ID == "" {
		return nil, assets.InvalidParameters("record", "an existing record is required")
	}
	up, err := m.validateUpload(file)
	if err != nil {
		return nil, err
	}

	existing, err := m.store.Get(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	if rec.Repository == "" {
		rec.Repository = existing.Repository
	}
	repo, err := m.repos.Get(rec.Repository)
	if err != nil {
		return nil, err
	}

	if err := m.deleteFiles(ctx, existing); err != nil {
		return nil, err
	}

	if rec.Name == "" {
		rec.Name = existing.Name
	}
	rec.CreatedAt = existing.CreatedAt
	rec.Type, rec.Subtype = up.typ, up.subtype
	rec.HasThumbnail = assets.HasThumbnail(up.typ, up.subtype)
	rec.Path = assets.PrimaryPath(rec.ID, rec.Subtype)
	rec.Width, rec.Height, rec.Duration = 0, 0, 0

	discard := func(cause error) error {
		errs := []error{cause}
		if err := m.removeThumbnail(rec.ID); err != nil {
			errs = append(errs, err)
		}
		if err := repo.Delete(context.WithoutCancel(ctx), rec.Path); err != nil {
			errs = append(errs, fmt.Errorf("remove new primary file: %w", err))
		}
		joined := errors.Join(errs...)
		metrics.LifecycleRollbacksTotal.WithLabelValues("replace", metrics.Status(errors.Join(errs[1:]...))).Inc()
		return joined
	}

	if err := m.writePrimary(ctx, repo, rec, up.file); err != nil {
		return nil, discard(err)
	}
	m.removeUpload(file)

	if err := m.renderThumbnail(ctx, repo, rec); err != nil {
		return nil, discard(err)
	}

	m.probe(ctx, repo, rec)

	if err := m.store.Update(ctx, rec); err != nil {
		return nil, discard(fmt.Errorf("persist record %s: %w", rec.ID, err))
	}
	m.transition(rec.ID, StateActive)
	m.log.Info("Replaced asset %s (%s, %d bytes, thumbnail=%v)", rec.ID, rec.MimeType(), rec.Size, rec.HasThumbnail)
	return rec, nil
}

// Delete removes the record, then its primary file, then its thumbnail.
// Only rec.ID is trusted: the files deleted are those of the stored record.
// When the record is already gone they are derived from rec.ID and
// rec.Subtype in the default repository. Absent files and an
// already-deleted record count as success. A file deletion failure is
// returned with the record already gone; the orphaned file is swept by
// housekeeping.
func (m *Manager) Delete(ctx context.Context, rec *assets.Record) (_ *assets.Record, err error) {
	defer func(start time.Time) { observe("delete", start, err) }(time.Now())

	if rec == nil || rec.ID == "" {
		return nil, assets.InvalidParameters("record", "a record ID is required")
	}

	stored, err := m.store.Get(ctx, rec.ID)
	switch {
	case err == nil:
	case assets.IsNotFound(err):
		stored = m.derivedRecord(rec)
	default:
		return nil, fmt.Errorf("load record %s: %w", rec.ID, err)
	}

	if err := m.store.Delete(ctx, stored.ID); err != nil {
		if !assets.IsNotFound(err) {
			return nil, fmt.Errorf("delete record %s: %w", stored.ID, err)
		}
		m.log.Debug("Record %s already deleted", stored.ID)
	}

	if err := m.deleteFiles(ctx, stored); err != nil {
		return nil, err
	}

	m.transition(stored.ID, StateDeleted)
	m.log.Info("Deleted asset %s", stored.ID)
	return stored, nil
}

// derivedRecord rebuilds the file locations of a record that is no longer
// stored, ignoring any path or repository the caller supplied.
func (m *Manager) derivedRecord(rec *assets.Record) *assets.Record {
	derived := &assets.Record{
		ID:         rec.ID,
		Type:       rec.Type,
		Subtype:    rec.Subtype,
		Repository: m.cfg.DefaultRepository,
	}
	if rec.Subtype != "" {
		derived.Path = assets.PrimaryPath(rec.ID, rec.Subtype)
	}
	return derived
}

// deleteFiles removes the primary file and thumbnail of rec.
func (m *Manager) deleteFiles(ctx context.Context, rec *assets.Record) error {
	if rec.Path != "" {
		repo, err := m.repos.Get(rec.Repository)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, rec.Path); err != nil {
			return fmt.Errorf("delete primary file of %s: %w", rec.ID, err)
		}
	}
	return m.removeThumbnail(rec.ID)
}

func (m *Manager) removeThumbnail(id string) error {
	path := m.ThumbnailPath(id)
	if err := filesystem.RemoveWithRetry(path, m.retry); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete thumbnail of %s: %w", id, err)
	}
	return nil
}

// DeleteMany is not supported: each delete is a multi-step cleanup that
// cannot be batched with per-item failure isolation.
func (m *Manager) DeleteMany(_ context.Context, _ []string) (err error) {
	defer func(start time.Time) { observe("bulk_delete", start, err) }(time.Now())
	return fmt.Errorf("bulk delete: %w", assets.ErrOperationDisabled)
}

// Open returns the primary file of asset id, or its thumbnail, with the
// content type to serve it as. The caller must close the stream.
func (m *Manager) Open(ctx context.Context, id string, thumbnail bool) (io.ReadCloser, string, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if thumbnail {
		if !rec.HasThumbnail {
			return nil, "", assets.NotFound(id, errors.New("asset has no thumbnail"))
		}
		f, err := filesystem.OpenWithRetry(m.ThumbnailPath(id), m.retry)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, "", assets.NotFound(id, err)
			}
			return nil, "", fmt.Errorf("open thumbnail of %s: %w", id, err)
		}
		return f, assets.MimeTypeForExtension(m.cfg.ThumbnailExt), nil
	}

	if rec.Path == "" {
		return nil, "", assets.NotFound(id, errors.New("asset has no stored file"))
	}
	repo, err := m.repos.Get(rec.Repository)
	if err != nil {
		return nil, "", err
	}
	rc, err := repo.Read(ctx, rec.Path)
	if err != nil {
		return nil, "", err
	}
	return rc, rec.MimeType(), nil
}

// RegenerateThumbnail renders the thumbnail of rec from its stored primary
// file. The record is not modified.
func (m *Manager) RegenerateThumbnail(ctx context.Context, rec *assets.Record) (err error) {
	defer func(start time.Time) { observe("regenerate_thumbnail", start, err) }(time.Now())

	if !rec.HasThumbnail {
		return assets.InvalidParameters("record", "asset does not take a thumbnail")
	}
	repo, err := m.repos.Get(rec.Repository)
	if err != nil {
		return err
	}
	if err := m.generateThumbnail(ctx, repo, rec); err != nil {
		return err
	}
	m.log.Info("Regenerated thumbnail for %s", rec.ID)
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
