// Command assetctl runs asset store housekeeping once, against the same
// configuration and database as the server, and waits for any background
// work it starts.
//
// Usage:
//
//	assetctl <command>
//
// Commands:
//
//	verify      Report records whose primary file is missing.
//	regenerate  Regenerate missing thumbnails.
//	sweep       Remove primary files and thumbnails no record references
//	            once they are older than ORPHAN_GRACE_PERIOD.
//	housekeep   All of the above, recording the run time.
//	status      Asset counts by kind, stored bytes and last housekeeping.
//
// Output is aligned for terminals and key=value lines otherwise. The exit
// status is 2 when assets are missing and 1 on any other failure.
// Logging defaults to warnings unless LOG_LEVEL is set.
package main
