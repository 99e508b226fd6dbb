// Package repository defines the storage contract for primary asset files
// and its backends.
//
// [Local] keeps files under a root directory and sandboxes every logical
// path to that root. [S3] stores objects in an S3-compatible bucket under an
// optional key prefix.
//
// Backends are registered by unique name in a [Registry], which wraps each
// one so repository operations are recorded in the asset_store_repository_*
// metrics.
package repository
