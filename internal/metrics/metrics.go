package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Repository metrics
var (
	RepositoryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_store_repository_operation_duration_seconds",
			Help:    "Asset repository operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"repository", "operation"},
	)

	RepositoryOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_repository_operation_errors_total",
			Help: "Total number of failed asset repository operations",
		},
		[]string{"repository", "operation"},
	)

	RepositoryBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_repository_bytes_written_total",
			Help: "Total bytes written into asset repositories",
		},
		[]string{"repository"},
	)
)

// Lifecycle metrics
var (
	LifecycleOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_lifecycle_operations_total",
			Help: "Total number of asset lifecycle operations",
		},
		[]string{"operation", "status"},
	)

	LifecycleOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_store_lifecycle_operation_duration_seconds",
			Help:    "Asset lifecycle operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
		},
		[]string{"operation"},
	)

	LifecycleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_lifecycle_transitions_total",
			Help: "Total number of asset state transitions by target state",
		},
		[]string{"state"},
	)

	LifecycleRollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_lifecycle_rollbacks_total",
			Help: "Total number of compensating rollbacks by operation and outcome",
		},
		[]string{"operation", "status"},
	)
)

// Transcoder metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"kind", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_store_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds by engine",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 120},
		},
		[]string{"kind", "engine"},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_probes_total",
			Help: "Total number of metadata probes by status",
		},
		[]string{"status"},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_store_probe_duration_seconds",
			Help:    "Metadata probe duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	TempFilesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_temp_files_active",
			Help: "Number of materialized temporary files currently on disk",
		},
	)
)

// Housekeeping metrics
var (
	HousekeepingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_housekeeping_runs_total",
			Help: "Total number of housekeeping runs by status",
		},
		[]string{"status"},
	)

	HousekeepingRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_housekeeping_running",
			Help: "Whether housekeeping is currently running (1 = running, 0 = idle)",
		},
	)

	HousekeepingLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_housekeeping_last_run_timestamp",
			Help: "Timestamp of the last completed housekeeping run",
		},
	)

	HousekeepingLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_housekeeping_last_run_duration_seconds",
			Help: "Duration of the last housekeeping run in seconds",
		},
	)

	HousekeepingMissingAssets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_housekeeping_missing_assets",
			Help: "Number of records whose primary file was missing in the last scan",
		},
	)

	HousekeepingThumbnailsRegenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_housekeeping_thumbnails_regenerated_total",
			Help: "Total number of background thumbnail regenerations by status",
		},
		[]string{"status"},
	)

	HousekeepingOrphansRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_housekeeping_orphans_removed_total",
			Help: "Total number of files removed because no record references them",
		},
		[]string{"kind"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_store_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Inventory metrics, refreshed by the Collector
var (
	AssetsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_store_assets_total",
			Help: "Number of asset records by kind",
		},
		[]string{"kind"},
	)

	AssetsBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_assets_bytes_total",
			Help: "Total size of all primary files in bytes",
		},
	)

	AssetsWithThumbnail = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_assets_with_thumbnail",
			Help: "Number of asset records flagged as having a thumbnail",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_memory_paused",
			Help: "Whether background work is paused for memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_store_memory_pauses_total",
			Help: "Total number of times background work was paused for memory pressure",
		},
	)
)

// Filesystem metrics, recorded through filesystem.Observer
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_store_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_filesystem_retry_attempts_total",
			Help: "Total number of NFS stale handle retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_filesystem_retry_success_total",
			Help: "Total number of operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_filesystem_retry_failures_total",
			Help: "Total number of operations that exhausted their retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_store_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_store_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors encountered",
		},
		[]string{"operation", "volume"},
	)
)

// ObserveRepository records one repository operation.
func ObserveRepository(repository, operation string, durationSeconds float64, err error) {
	RepositoryOperationDuration.WithLabelValues(repository, operation).Observe(durationSeconds)
	if err != nil {
		RepositoryOperationErrors.WithLabelValues(repository, operation).Inc()
	}
}

// Status maps an error to the "success"/"error" label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
