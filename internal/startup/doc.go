// Package startup loads the asset store configuration and prints the
// startup and shutdown log sections.
//
// [LoadConfig] prints the banner and calls [Load], which loads a .env file
// from the working directory when present (variables already in the
// environment win), then reads:
//
//   - ASSET_ROOT_DIR: root of the "local" repository (default: /data/assets)
//   - THUMBNAIL_DIR: thumbnail directory (default: /data/thumbnails)
//   - THUMBNAIL_WIDTH: maximum thumbnail width in pixels (default: 320)
//   - THUMBNAIL_EXT: thumbnail file extension (default: .jpg)
//   - THUMBNAIL_FAILURE_POLICY: rollback or keep (default: rollback)
//   - DEFAULT_REPOSITORY: repository for records that name none (default: local)
//   - MAX_UPLOAD_SIZE: upload limit in bytes, 0 = unlimited (default: 104857600)
//   - ACCEPTED_MIME_TYPES: comma list, type/* wildcards, empty accepts all (default: image/*,video/*,audio/*)
//   - DATABASE_DIR: directory of assets.db (default: /data/database)
//   - TEMP_DIR: scratch space for materialized media (default: os.TempDir())
//   - FFMPEG_PATH, FFPROBE_PATH: tool binaries (default: ffmpeg, ffprobe)
//   - TRANSCODE_TIMEOUT: per tool invocation (default: 2m)
//   - IMAGE_FALLBACK: in-process image thumbnails when ffmpeg fails (default: true)
//   - VIPS_ENABLED: use libvips for the fallback (default: false)
//   - HOUSEKEEPING_SCHEDULE: cron spec, empty disables (default: @every 6h)
//   - HOUSEKEEPING_WORKERS: fan-out override (default: 2x GOMAXPROCS, max 16)
//   - SWEEP_ORPHANS, ORPHAN_GRACE_PERIOD: orphan removal (default: true, 1h)
//   - METRICS_ENABLED, METRICS_PORT: operations endpoint (default: true, 9090)
//   - S3_BUCKET, S3_REGION, S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY,
//     S3_PREFIX, S3_REPOSITORY_NAME: optional S3 repository, enabled by S3_BUCKET
//
// Directories are made absolute, created when missing and checked for
// write access.
package startup
