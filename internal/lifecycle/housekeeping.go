package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"asset-store/internal/assets"
	"asset-store/internal/filesystem"
	"asset-store/internal/logging"
	"asset-store/internal/metrics"
	"asset-store/internal/repository"
	"asset-store/internal/workers"
)

// HousekeeperConfig controls scheduling and fan-out.
type HousekeeperConfig struct {
	Schedule     string        // cron spec; empty disables periodic runs
	Workers      int           // concurrent checks and regenerations
	SweepOrphans bool          // remove files no record references
	OrphanGrace  time.Duration // minimum age before an orphan is removed
	Throttle     Throttle      // optional gate for background regenerations
}

// Throttle blocks background work while the process is under memory
// pressure. *memory.Monitor implements it.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Report summarizes one housekeeping run.
type Report struct {
	Checked             int
	Missing             int
	ThumbnailsScheduled int
	OrphansRemoved      int
	Duration            time.Duration
}

// lastRunRecorder is implemented by stores that remember run times.
type lastRunRecorder interface {
	SetLastHousekeeping(ctx context.Context, t time.Time) error
}

// Housekeeper reconciles records with the files they reference: it reports
// missing primary files and regenerates missing thumbnails in the
// background.
type Housekeeper struct {
	mgr     *Manager
	cfg     HousekeeperConfig
	regen   *workers.Group
	pending sync.Map // asset IDs with a regeneration scheduled or running
	cron    *cron.Cron
	running atomic.Bool
	log     *logging.Logger
}

// NewHousekeeper creates a Housekeeper for mgr's records and repositories.
func NewHousekeeper(mgr *Manager, cfg HousekeeperConfig) *Housekeeper {
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForIO(16)
	}
	if cfg.OrphanGrace <= 0 {
		cfg.OrphanGrace = time.Hour
	}
	return &Housekeeper{
		mgr:   mgr,
		cfg:   cfg,
		regen: workers.NewGroup(cfg.Workers),
		log:   logging.With("housekeeping"),
	}
}

// VerifyAssets checks that the primary file of every record exists. If any
// are missing it returns a *assets.MissingAssetsError listing them. Each
// record is checked independently; one failure never stops the scan.
func (h *Housekeeper) VerifyAssets(ctx context.Context) error {
	records, err := h.mgr.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	_, err = h.verify(ctx, records)
	return err
}

func (h *Housekeeper) verify(ctx context.Context, records []assets.Record) (int, error) {
	var (
		mu   sync.Mutex
		errs []error
	)

	h.forEach(records, func(rec *assets.Record) {
		if err := h.verifyOne(ctx, rec); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	})

	metrics.HousekeepingMissingAssets.Set(float64(len(errs)))
	if len(errs) == 0 {
		return 0, nil
	}
	return len(errs), &assets.MissingAssetsError{Errors: errs}
}

func (h *Housekeeper) verifyOne(ctx context.Context, rec *assets.Record) error {
	if rec.Path == "" {
		return assets.NotFound(rec.ID, errors.New("record has no stored file"))
	}
	repo, err := h.mgr.repos.Get(rec.Repository)
	if err != nil {
		return fmt.Errorf("asset %s: %w", rec.ID, err)
	}
	if err := repo.EnsureExists(ctx, rec.Path); err != nil {
		if assets.IsNotFound(err) {
			return assets.NotFound(rec.ID, err)
		}
		return fmt.Errorf("asset %s: %w", rec.ID, err)
	}
	return nil
}

// RegenerateThumbnails finds records with HasThumbnail set whose thumbnail
// file is missing. When the primary file is present the thumbnail is
// regenerated in the background; failures are only logged. An asset whose
// regeneration is still pending from an earlier call is skipped. It returns
// how many regenerations were scheduled. Use Wait to block until they finish.
func (h *Housekeeper) RegenerateThumbnails(ctx context.Context) (int, error) {
	records, err := h.mgr.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	return h.regenerate(ctx, records), nil
}

func (h *Housekeeper) regenerate(ctx context.Context, records []assets.Record) int {
	var scheduled atomic.Int32
	bg := context.WithoutCancel(ctx)

	h.forEach(records, func(rec *assets.Record) {
		if !rec.HasThumbnail || !h.thumbnailMissing(rec) {
			return
		}

		if err := h.verifyOne(ctx, rec); err != nil {
			h.log.Warn("Thumbnail for %s missing but primary file unavailable: %v", rec.ID, err)
			metrics.HousekeepingThumbnailsRegenerated.WithLabelValues("missing_primary").Inc()
			return
		}

		if _, busy := h.pending.LoadOrStore(rec.ID, struct{}{}); busy {
			h.log.Debug("Thumbnail regeneration for %s already pending", rec.ID)
			return
		}

		scheduled.Add(1)
		h.regen.Go(func() {
			defer h.pending.Delete(rec.ID)
			if h.cfg.Throttle != nil {
				if err := h.cfg.Throttle.Wait(bg); err != nil {
					h.log.Debug("Thumbnail regeneration for %s abandoned: %v", rec.ID, err)
					metrics.HousekeepingThumbnailsRegenerated.WithLabelValues("skipped").Inc()
					return
				}
			}
			err := h.mgr.RegenerateThumbnail(bg, rec)
			metrics.HousekeepingThumbnailsRegenerated.WithLabelValues(metrics.Status(err)).Inc()
			if err != nil {
				h.log.Warn("Background thumbnail regeneration failed for %s: %v", rec.ID, err)
			}
		})
	})

	return int(scheduled.Load())
}

func (h *Housekeeper) thumbnailMissing(rec *assets.Record) bool {
	err := filesystem.EnsureFileExists(h.mgr.ThumbnailPath(rec.ID))
	if err == nil {
		return false
	}
	if !assets.IsNotFound(err) {
		h.log.Warn("Cannot check thumbnail of %s: %v", rec.ID, err)
		return false
	}
	return true
}

// SweepOrphans removes thumbnails and primary files that no record
// references and that are older than the configured grace period. Primary
// files are only swept in repositories that can list their contents.
func (h *Housekeeper) SweepOrphans(ctx context.Context) (int, error) {
	records, err := h.mgr.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	return h.sweep(ctx, records)
}

func (h *Housekeeper) sweep(ctx context.Context, records []assets.Record) (int, error) {
	byID := make(map[string]*assets.Record, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}
	cutoff := time.Now().Add(-h.cfg.OrphanGrace)

	var errs []error
	removed := 0

	entries, err := os.ReadDir(h.mgr.cfg.ThumbnailDir)
	if err != nil {
		errs = append(errs, fmt.Errorf("read thumbnail directory: %w", err))
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), h.mgr.cfg.ThumbnailExt) {
			continue
		}
		id := assetID(entry.Name())
		if rec, ok := byID[id]; ok && rec.HasThumbnail {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := h.mgr.removeThumbnail(id); err != nil {
			errs = append(errs, err)
			continue
		}
		h.log.Info("Removed orphaned thumbnail %s", entry.Name())
		metrics.HousekeepingOrphansRemoved.WithLabelValues("thumbnail").Inc()
		removed++
	}

	for _, name := range h.mgr.Repositories() {
		n, err := h.sweepRepository(ctx, name, byID, cutoff)
		removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	return removed, errors.Join(errs...)
}

func (h *Housekeeper) sweepRepository(ctx context.Context, name string, byID map[string]*assets.Record, cutoff time.Time) (int, error) {
	repo, err := h.mgr.repos.Get(name)
	if err != nil {
		return 0, err
	}
	lister, ok := repo.(repository.Lister)
	if !ok {
		return 0, nil
	}
	objects, err := lister.List(ctx)
	if errors.Is(err, assets.ErrOperationDisabled) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	for _, obj := range objects {
		if strings.Contains(obj.Path, "/") || obj.ModTime.After(cutoff) {
			continue
		}
		if rec, ok := byID[assetID(obj.Path)]; ok && rec.Repository == name && rec.Path == obj.Path {
			continue
		}
		if err := repo.Delete(ctx, obj.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		h.log.Info("Removed orphaned file %s from repository %s", obj.Path, name)
		metrics.HousekeepingOrphansRemoved.WithLabelValues("primary").Inc()
		removed++
	}
	return removed, errors.Join(errs...)
}

// assetID extracts the ID from a stored file name. IDs never contain dots,
// while subtypes may.
func assetID(name string) string {
	id, _, _ := strings.Cut(path.Base(name), ".")
	return id
}

// forEach runs fn for every record on the worker pool and waits for all of
// them.
func (h *Housekeeper) forEach(records []assets.Record, fn func(rec *assets.Record)) {
	g := workers.NewGroup(h.cfg.Workers)
	for i := range records {
		rec := &records[i]
		g.Go(func() { fn(rec) })
	}
	g.Wait()
}

// Run verifies assets, schedules thumbnail regeneration and optionally
// sweeps orphans. A MissingAssets result is logged and returned but never
// stops the later steps. Overlapping runs are skipped.
func (h *Housekeeper) Run(ctx context.Context) (Report, error) {
	var report Report
	if !h.running.CompareAndSwap(false, true) {
		h.log.Info("Housekeeping already running, skipping")
		return report, nil
	}
	defer h.running.Store(false)

	start := time.Now()
	metrics.HousekeepingRunning.Set(1)
	defer metrics.HousekeepingRunning.Set(0)

	h.log.Info("Housekeeping started")

	records, err := h.mgr.store.List(ctx)
	if err != nil {
		metrics.HousekeepingRunsTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("list records: %w", err)
	}
	report.Checked = len(records)

	missing, verifyErr := h.verify(ctx, records)
	report.Missing = missing
	if verifyErr != nil {
		h.log.Warn("Housekeeping found %d missing assets: %v", missing, verifyErr)
	}

	report.ThumbnailsScheduled = h.regenerate(ctx, records)

	var sweepErr error
	if h.cfg.SweepOrphans {
		report.OrphansRemoved, sweepErr = h.sweep(ctx, records)
		if sweepErr != nil {
			h.log.Warn("Orphan sweep incomplete: %v", sweepErr)
		}
	}

	report.Duration = time.Since(start)
	runErr := errors.Join(verifyErr, sweepErr)

	status := "success"
	if runErr != nil {
		status = "error"
	}
	metrics.HousekeepingRunsTotal.WithLabelValues(status).Inc()
	metrics.HousekeepingLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.HousekeepingLastRunDuration.Set(report.Duration.Seconds())

	if recorder, ok := h.mgr.store.(lastRunRecorder); ok {
		if err := recorder.SetLastHousekeeping(ctx, time.Now()); err != nil {
			h.log.Warn("Failed to record housekeeping time: %v", err)
		}
	}

	h.log.Info("Housekeeping complete in %v: %d checked, %d missing, %d thumbnails scheduled, %d orphans removed",
		report.Duration, report.Checked, report.Missing, report.ThumbnailsScheduled, report.OrphansRemoved)
	return report, runErr
}

// Start schedules Run on the configured cron spec. An empty schedule does
// nothing.
func (h *Housekeeper) Start() error {
	if h.cfg.Schedule == "" {
		h.log.Info("Periodic housekeeping disabled")
		return nil
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(h.cfg.Schedule, func() {
		if _, err := h.Run(context.Background()); err != nil {
			h.log.Warn("Scheduled housekeeping: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid housekeeping schedule %q: %w", h.cfg.Schedule, err)
	}

	h.cron = c
	c.Start()
	h.log.Info("Periodic housekeeping scheduled: %s", h.cfg.Schedule)
	return nil
}

// Wait blocks until all background thumbnail regenerations have finished.
func (h *Housekeeper) Wait() {
	h.regen.Wait()
}

// Stop stops the scheduler, waits for a running job and for background
// regenerations.
func (h *Housekeeper) Stop() {
	if h.cron != nil {
		<-h.cron.Stop().Done()
	}
	h.Wait()
	h.log.Info("Housekeeping stopped")
}
