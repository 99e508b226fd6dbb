// Package lifecycle sequences asset creation, replacement and deletion
// across the record store, the storage repositories and the thumbnail
// directory, rolling back partial work when a step fails.
//
// The Housekeeper reconciles stored records with the files they point at.
// It reports records whose primary file has disappeared, regenerates lost
// thumbnails in the background and, when enabled, removes files that no
// record references.
package lifecycle
