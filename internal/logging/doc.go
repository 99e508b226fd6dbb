// Package logging provides the leveled printf-style logger used across the
// asset store.
//
// Levels, lowest first:
//   - DEBUG: state transitions and tool invocations
//   - INFO: startup, housekeeping summaries
//   - WARN: soft failures (probe, background regeneration)
//   - ERROR: failures surfaced to callers
//   - FATAL: configuration errors that stop the process
//
// The level comes from LOG_LEVEL (or DEBUG=true) unless SetLevel is called.
// Components obtain a prefixed Logger through With.
package logging
