/*
Package filesystem provides path sandboxing and resilient filesystem
operations for every repository implementation and the thumbnail store.

# Path resolution

[Resolve] joins a repository-relative path onto a root. Relative input is
cleaned as if rooted, so traversal segments cannot leave the root:

	filesystem.Resolve("a/../../etc/passwd", "/data/assets") // "/data/assets/etc/passwd"

Absolute input is returned unchanged. This is a deliberate trust boundary:
only server-derived paths reach it, never paths supplied by an uploader.

[EnsureDirectory] creates missing parents and treats an existing directory as
success. [EnsureFileExists] reports absence as an [assets.NotFoundError].

# Retry behavior

Stat, Open, Remove and Rename have *WithRetry variants that retry only NFS
stale file handle errors (ESTALE) with exponential backoff:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

All other errors fail immediately.

# Metrics

Operation and retry metrics are reported through an [Observer] installed with
[SetObserver]; the metrics package provides the Prometheus implementation.
Paths are labeled with the volume name found by the [VolumeResolver].
*/
package filesystem
