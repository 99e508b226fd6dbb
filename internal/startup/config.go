package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"asset-store/internal/assets"
	"asset-store/internal/database"
	"asset-store/internal/lifecycle"
	"asset-store/internal/logging"
	"asset-store/internal/repository"
	"asset-store/internal/workers"
)

// LocalRepositoryName is the name the filesystem repository under
// ASSET_ROOT_DIR is registered as.
const LocalRepositoryName = "local"

// Config holds all application configuration
type Config struct {
	AssetRootDir      string
	ThumbnailDir      string
	ThumbnailWidth    int
	ThumbnailExt      string
	DefaultRepository string
	MaxUploadSize     int64
	AcceptedMimeTypes []string
	FailurePolicy     lifecycle.FailurePolicy

	DatabaseDir  string
	DatabasePath string
	TempDir      string

	FFmpegPath       string
	FFprobePath      string
	TranscodeTimeout time.Duration
	ImageFallback    bool
	VipsEnabled      bool

	HousekeepingSchedule string
	HousekeepingWorkers  int
	SweepOrphans         bool
	OrphanGracePeriod    time.Duration

	MetricsEnabled bool
	MetricsPort    string

	// S3 is nil unless S3_BUCKET is set.
	S3           *repository.S3Config
	S3Repository string
}

// Manager returns the lifecycle manager options.
func (c *Config) Manager() lifecycle.Config {
	return lifecycle.Config{
		ThumbnailDir:      c.ThumbnailDir,
		ThumbnailWidth:    c.ThumbnailWidth,
		ThumbnailExt:      c.ThumbnailExt,
		DefaultRepository: c.DefaultRepository,
		MaxUploadSize:     c.MaxUploadSize,
		AcceptedMimeTypes: c.AcceptedMimeTypes,
		FailurePolicy:     c.FailurePolicy,
	}
}

// Housekeeper returns the housekeeping options.
func (c *Config) Housekeeper() lifecycle.HousekeeperConfig {
	return lifecycle.HousekeeperConfig{
		Schedule:     c.HousekeepingSchedule,
		Workers:      c.HousekeepingWorkers,
		SweepOrphans: c.SweepOrphans,
		OrphanGrace:  c.OrphanGracePeriod,
	}
}

// Volumes maps volume labels to directories for filesystem metrics.
func (c *Config) Volumes() map[string]string {
	return map[string]string{
		"assets":     c.AssetRootDir,
		"thumbnails": c.ThumbnailDir,
		"database":   c.DatabaseDir,
		"temp":       c.TempDir,
	}
}

// LoadConfig prints the startup banner and system information, then loads
// the configuration with Load.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()
	return Load()
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists. Malformed numbers and durations
// fall back to their defaults with a warning; an unknown failure policy or
// default repository is an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logging.Debug("No .env file loaded: %v", err)
	} else {
		logging.Info("Loaded environment from .env")
	}

	section("CONFIGURATION")

	cfg := &Config{
		AssetRootDir:         getEnv("ASSET_ROOT_DIR", "/data/assets"),
		ThumbnailDir:         getEnv("THUMBNAIL_DIR", "/data/thumbnails"),
		ThumbnailWidth:       getEnvInt("THUMBNAIL_WIDTH", 320),
		ThumbnailExt:         assets.NormalizeExtension(getEnv("THUMBNAIL_EXT", ".jpg")),
		DefaultRepository:    getEnv("DEFAULT_REPOSITORY", LocalRepositoryName),
		MaxUploadSize:        getEnvInt64("MAX_UPLOAD_SIZE", 100<<20),
		AcceptedMimeTypes:    getEnvList("ACCEPTED_MIME_TYPES", "image/*,video/*,audio/*"),
		DatabaseDir:          getEnv("DATABASE_DIR", "/data/database"),
		TempDir:              getEnv("TEMP_DIR", os.TempDir()),
		FFmpegPath:           getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:          getEnv("FFPROBE_PATH", "ffprobe"),
		TranscodeTimeout:     getEnvDuration("TRANSCODE_TIMEOUT", 2*time.Minute),
		ImageFallback:        getEnvBool("IMAGE_FALLBACK", true),
		VipsEnabled:          getEnvBool("VIPS_ENABLED", false),
		HousekeepingSchedule: lookupEnv("HOUSEKEEPING_SCHEDULE", "@every 6h"),
		HousekeepingWorkers:  getEnvInt("HOUSEKEEPING_WORKERS", workers.ForIO(16)),
		SweepOrphans:         getEnvBool("SWEEP_ORPHANS", true),
		OrphanGracePeriod:    getEnvDuration("ORPHAN_GRACE_PERIOD", time.Hour),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
		MetricsPort:          getEnv("METRICS_PORT", "9090"),
	}
	if cfg.ThumbnailWidth <= 0 {
		logging.Warn("  THUMBNAIL_WIDTH must be positive, using default: 320")
		cfg.ThumbnailWidth = 320
	}
	if cfg.ThumbnailExt == "" {
		cfg.ThumbnailExt = ".jpg"
	}
	if cfg.HousekeepingWorkers <= 0 {
		logging.Warn("  HOUSEKEEPING_WORKERS must be positive, using default: %d", workers.ForIO(16))
		cfg.HousekeepingWorkers = workers.ForIO(16)
	}
	if cfg.MaxUploadSize < 0 {
		logging.Warn("  MAX_UPLOAD_SIZE must not be negative, treating as unlimited")
		cfg.MaxUploadSize = 0
	}

	policy, err := lifecycle.ParseFailurePolicy(os.Getenv("THUMBNAIL_FAILURE_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("THUMBNAIL_FAILURE_POLICY: %w", err)
	}
	cfg.FailurePolicy = policy

	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.S3 = &repository.S3Config{
			Bucket:    bucket,
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Prefix:    os.Getenv("S3_PREFIX"),
			TempDir:   cfg.TempDir,
		}
		cfg.S3Repository = getEnv("S3_REPOSITORY_NAME", "s3")
	}

	logConfig(cfg)

	if !cfg.hasRepository(cfg.DefaultRepository) {
		return nil, fmt.Errorf("DEFAULT_REPOSITORY %q is not configured", cfg.DefaultRepository)
	}
	if cfg.S3 != nil && cfg.S3Repository == LocalRepositoryName {
		return nil, fmt.Errorf("S3_REPOSITORY_NAME must differ from %q", LocalRepositoryName)
	}

	if err := setupDirectories(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) hasRepository(name string) bool {
	return name == LocalRepositoryName || (c.S3 != nil && name == c.S3Repository)
}

func logConfig(cfg *Config) {
	logging.Info("  ASSET_ROOT_DIR:           %s", cfg.AssetRootDir)
	logging.Info("  THUMBNAIL_DIR:            %s", cfg.ThumbnailDir)
	logging.Info("  THUMBNAIL_WIDTH:          %d", cfg.ThumbnailWidth)
	logging.Info("  THUMBNAIL_EXT:            %s", cfg.ThumbnailExt)
	logging.Info("  THUMBNAIL_FAILURE_POLICY: %s", cfg.FailurePolicy)
	logging.Info("  DEFAULT_REPOSITORY:       %s", cfg.DefaultRepository)
	logging.Info("  MAX_UPLOAD_SIZE:          %d", cfg.MaxUploadSize)
	logging.Info("  ACCEPTED_MIME_TYPES:      %s", strings.Join(cfg.AcceptedMimeTypes, ","))
	logging.Info("  DATABASE_DIR:             %s", cfg.DatabaseDir)
	logging.Info("  TEMP_DIR:                 %s", cfg.TempDir)
	logging.Info("  FFMPEG_PATH:              %s", cfg.FFmpegPath)
	logging.Info("  FFPROBE_PATH:             %s", cfg.FFprobePath)
	logging.Info("  TRANSCODE_TIMEOUT:        %v", cfg.TranscodeTimeout)
	logging.Info("  IMAGE_FALLBACK:           %v", cfg.ImageFallback)
	logging.Info("  VIPS_ENABLED:             %v", cfg.VipsEnabled)
	logging.Info("  HOUSEKEEPING_SCHEDULE:    %s", cfg.HousekeepingSchedule)
	logging.Info("  HOUSEKEEPING_WORKERS:     %d", cfg.HousekeepingWorkers)
	logging.Info("  SWEEP_ORPHANS:            %v", cfg.SweepOrphans)
	logging.Info("  ORPHAN_GRACE_PERIOD:      %v", cfg.OrphanGracePeriod)
	logging.Info("  METRICS_ENABLED:          %v", cfg.MetricsEnabled)
	logging.Info("  METRICS_PORT:             %s", cfg.MetricsPort)
	logging.Info("  LOG_LEVEL:                %s", logging.GetLevel())
	if cfg.S3 != nil {
		logging.Info("  S3_BUCKET:                %s (repository %q)", cfg.S3.Bucket, cfg.S3Repository)
		logging.Info("  S3_REGION:                %s", cfg.S3.Region)
		if cfg.S3.Endpoint != "" {
			logging.Info("  S3_ENDPOINT:              %s", cfg.S3.Endpoint)
		}
		if cfg.S3.Prefix != "" {
			logging.Info("  S3_PREFIX:                %s", cfg.S3.Prefix)
		}
	} else {
		logging.Info("  S3:                       DISABLED")
	}
}

func setupDirectories(cfg *Config) error {
	logging.Info("")
	section("DIRECTORY SETUP")

	dirs := []struct {
		name string
		path *string
	}{
		{"asset root", &cfg.AssetRootDir},
		{"thumbnail", &cfg.ThumbnailDir},
		{"database", &cfg.DatabaseDir},
		{"temp", &cfg.TempDir},
	}
	for _, d := range dirs {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s directory path: %w", d.name, err)
		}
		*d.path = abs

		if err := ensureDirectory(abs, d.name); err != nil {
			return fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(abs); err != nil {
			return fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %-10s %s", d.name, abs)
	}

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, database.FileName)
	if cfg.S3 != nil {
		cfg.S3.TempDir = cfg.TempDir
	}
	return nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// lookupEnv is getEnv for variables where set-but-empty is meaningful.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getEnvList splits a comma-separated value. A set but empty variable
// yields an empty list.
func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(lookupEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
