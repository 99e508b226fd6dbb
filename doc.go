// Package main provides the entry point for the Asset Store service.
//
// Asset Store keeps uploaded media files in named storage repositories,
// renders thumbnails for them, and keeps records and files consistent
// through periodic housekeeping. The asset HTTP API is served by another
// layer; this process owns storage, thumbnails and maintenance.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads environment variables and validates directories
//  3. Component Initialization (internal/app):
//     - Database: Opens the SQLite record store in WAL mode
//     - Transcoder: Locates ffmpeg/ffprobe and the in-process image fallback
//     - Repositories: Registers the local repository and, if configured, S3
//     - Housekeeper: Verification, thumbnail regeneration and orphan sweeps
//  4. Background Services: Memory monitor, metrics collector, an initial
//     housekeeping run and the housekeeping schedule
//  5. Operations Server: /metrics, /healthz and /version on METRICS_PORT
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components cleanly
//
// # Configuration
//
// See package internal/startup for the environment variables read at startup.
// The assetctl command runs the same housekeeping steps once, from a shell.
package main
