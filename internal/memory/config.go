package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"asset-store/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The remainder is left for ffmpeg, ffprobe and libvips.
const DefaultMemoryRatio = 0.85

// cgroupMemoryMax is read when MEMORY_LIMIT is unset.
var cgroupMemoryMax = "/sys/fs/cgroup/memory.max"

// ConfigResult describes what ConfigureFromEnv did.
type ConfigResult struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT", "cgroup" or "none"
	ContainerLimit int64  // bytes, 0 if unknown
	GoMemLimit     int64  // bytes, 0 if not set
	Ratio          float64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call it
// first in main, before the database and transcoder allocate.
//
// Environment variables:
//   - GOMEMLIMIT: takes precedence, applied by the Go runtime itself
//   - MEMORY_LIMIT: container limit in bytes (Kubernetes Downward API); when
//     unset the cgroup v2 memory.max file is consulted
//   - MEMORY_RATIO: share of the limit for the Go heap (default 0.85)
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	limit, source := containerLimit()
	if limit <= 0 {
		logging.Debug("No container memory limit found, GOMEMLIMIT not configured")
		return ConfigResult{Source: "none"}
	}

	ratio := memoryRatio()
	goMemLimit := int64(float64(limit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit from %s)",
		formatBytes(goMemLimit), ratio*100, formatBytes(limit), source)

	return ConfigResult{
		Configured:     true,
		Source:         source,
		ContainerLimit: limit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

func containerLimit() (int64, string) {
	if env := os.Getenv("MEMORY_LIMIT"); env != "" {
		limit, err := strconv.ParseInt(strings.TrimSpace(env), 10, 64)
		if err != nil || limit <= 0 {
			logging.Warn("Ignoring invalid MEMORY_LIMIT %q", env)
			return 0, "none"
		}
		return limit, "MEMORY_LIMIT"
	}

	data, err := os.ReadFile(cgroupMemoryMax)
	if err != nil {
		return 0, "none"
	}
	value := strings.TrimSpace(string(data))
	if value == "max" {
		return 0, "none"
	}
	limit, err := strconv.ParseInt(value, 10, 64)
	if err != nil || limit <= 0 {
		return 0, "none"
	}
	return limit, "cgroup"
}

func memoryRatio() float64 {
	env := os.Getenv("MEMORY_RATIO")
	if env == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(env, 64)
	if err != nil || ratio <= 0 || ratio > 1.0 {
		logging.Warn("Invalid MEMORY_RATIO %q (want 0.0-1.0), using default %.2f", env, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// formatBytes formats bytes into a human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
