// Package app assembles the asset store from its configuration: record
// store, transcoder, repositories, lifecycle manager and housekeeper. Both
// the server and assetctl build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asset-store/internal/database"
	"asset-store/internal/filesystem"
	"asset-store/internal/lifecycle"
	"asset-store/internal/memory"
	"asset-store/internal/metrics"
	"asset-store/internal/repository"
	"asset-store/internal/startup"
	"asset-store/internal/transcoder"
)

// App holds the wired components.
type App struct {
	Config      *startup.Config
	DB          *database.Database
	Transcoder  *transcoder.Transcoder
	Manager     *lifecycle.Manager
	Housekeeper *lifecycle.Housekeeper
	Memory      *memory.Monitor
}

// New opens the database and registers every configured repository. The
// returned App must be closed.
func New(ctx context.Context, cfg *startup.Config) (*App, error) {
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(cfg.Volumes()))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	startup.LogDatabaseInit(cfg.DatabasePath, time.Since(dbStart))

	a := &App{Config: cfg, DB: db}
	if err := a.init(ctx); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	if cfg.ImageFallback && cfg.VipsEnabled {
		transcoder.InitVips()
	}
	a.Transcoder = transcoder.New(transcoder.Config{
		FFmpegPath:    cfg.FFmpegPath,
		FFprobePath:   cfg.FFprobePath,
		TempDir:       cfg.TempDir,
		Timeout:       cfg.TranscodeTimeout,
		ImageFallback: cfg.ImageFallback,
		UseVips:       cfg.VipsEnabled,
	})
	startup.LogTranscoderInit(a.Transcoder.Available(), cfg.ImageFallback, transcoder.IsVipsAvailable())

	mgr, err := lifecycle.NewManager(cfg.Manager(), a.DB, a.Transcoder)
	if err != nil {
		return fmt.Errorf("initialize lifecycle manager: %w", err)
	}
	a.Manager = mgr

	local, err := repository.NewLocal(cfg.AssetRootDir)
	if err != nil {
		return fmt.Errorf("initialize local repository: %w", err)
	}
	if err := mgr.RegisterRepository(startup.LocalRepositoryName, local); err != nil {
		return err
	}

	if cfg.S3 != nil {
		remote, err := repository.NewS3(ctx, *cfg.S3)
		if err != nil {
			return fmt.Errorf("initialize S3 repository: %w", err)
		}
		if err := mgr.RegisterRepository(cfg.S3Repository, remote); err != nil {
			return err
		}
	}
	startup.LogRepositories(mgr.Repositories(), cfg.DefaultRepository)

	a.Memory = memory.NewMonitor(memory.DefaultConfig())
	hkCfg := cfg.Housekeeper()
	hkCfg.Throttle = a.Memory
	a.Housekeeper = lifecycle.NewHousekeeper(mgr, hkCfg)
	startup.LogHousekeepingInit(hkCfg.Schedule, hkCfg.Workers, hkCfg.SweepOrphans)

	metrics.InitializeMetrics(mgr.Repositories())
	return nil
}

// Close releases regenerations paused for memory, waits for background
// housekeeping work, then releases libvips and the database.
func (a *App) Close() error {
	if a.Memory != nil {
		a.Memory.Stop()
	}
	if a.Housekeeper != nil {
		a.Housekeeper.Stop()
	}
	transcoder.ShutdownVips()
	return a.DB.Close()
}
