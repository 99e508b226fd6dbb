// Package metrics provides Prometheus instrumentation for the asset store.
//
// All metrics are prefixed with "asset_store_" and registered with the
// default registry through promauto.
//
// # Metric Categories
//
//   - Repository: operation duration and errors per repository and operation,
//     bytes written.
//   - Lifecycle: operations by status, duration, state transitions, rollbacks.
//   - Transcoder: thumbnail generations by kind and status, duration by
//     engine, probe outcomes, active temporary files.
//   - Housekeeping: runs, last run time and duration, missing assets,
//     background thumbnail regenerations.
//   - Database: query totals and durations, open connections.
//   - Inventory: asset counts by kind and total bytes, refreshed by [Collector].
//   - Filesystem: operation and NFS retry metrics, recorded through the
//     filesystem.Observer returned by [NewFilesystemObserver].
//
// Call [InitializeMetrics] once at startup so every series exists before the
// first scrape.
package metrics
