// Package memory sizes the Go heap for a container and throttles
// background work under memory pressure.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (or the cgroup v2
// limit) scaled by MEMORY_RATIO, leaving headroom for the ffmpeg and
// libvips processes the transcoder spawns.
//
// A [Monitor] samples heap allocation against that limit. Once usage
// crosses the critical water mark, [Monitor.Wait] blocks callers until
// usage falls back below the high water mark. The housekeeper waits on it
// before each background thumbnail regeneration.
package memory
