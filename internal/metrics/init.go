package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after repositories are registered.
func InitializeMetrics(repositories []string) {
	repoOps := []string{"read", "write", "move", "delete", "ensure_exists", "list"}
	for _, repo := range repositories {
		for _, op := range repoOps {
			RepositoryOperationDuration.WithLabelValues(repo, op)
			RepositoryOperationErrors.WithLabelValues(repo, op)
		}
		RepositoryBytesWritten.WithLabelValues(repo)
	}

	for _, op := range []string{"create", "replace", "delete", "bulk_delete", "regenerate_thumbnail"} {
		LifecycleOperationsTotal.WithLabelValues(op, "success")
		LifecycleOperationsTotal.WithLabelValues(op, "error")
		LifecycleOperationDuration.WithLabelValues(op)
	}
	for _, op := range []string{"create", "replace"} {
		LifecycleRollbacksTotal.WithLabelValues(op, "success")
		LifecycleRollbacksTotal.WithLabelValues(op, "error")
	}
	for _, state := range []string{"uncommitted", "stored", "thumbnailed", "no_thumbnail", "active", "deleted"} {
		LifecycleTransitionsTotal.WithLabelValues(state)
	}

	for _, kind := range []string{"image", "video"} {
		ThumbnailGenerationsTotal.WithLabelValues(kind, "success")
		ThumbnailGenerationsTotal.WithLabelValues(kind, "error")
		for _, engine := range []string{"ffmpeg", "vips", "imaging"} {
			ThumbnailGenerationDuration.WithLabelValues(kind, engine)
		}
	}
	for _, kind := range []string{"image", "video", "audio", "other"} {
		AssetsTotal.WithLabelValues(kind)
	}

	ProbesTotal.WithLabelValues("success")
	ProbesTotal.WithLabelValues("error")

	HousekeepingRunsTotal.WithLabelValues("success")
	HousekeepingRunsTotal.WithLabelValues("error")
	for _, status := range []string{"success", "error", "missing_primary", "skipped"} {
		HousekeepingThumbnailsRegenerated.WithLabelValues(status)
	}
	for _, kind := range []string{"primary", "thumbnail"} {
		HousekeepingOrphansRemoved.WithLabelValues(kind)
	}

	for _, op := range []string{"insert", "update", "delete", "get", "list", "counts",
		"get_metadata", "set_metadata", "initialize_schema"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	volumes := []string{"assets", "thumbnails", "database", "temp", "unknown"}
	fsOps := []string{"stat", "open", "remove", "rename"}
	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
