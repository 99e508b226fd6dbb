package memory

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"testing"
)

// isolate clears the memory variables and points the cgroup lookup at a
// file the test controls.
func isolate(t *testing.T, cgroup string) {
	t.Helper()
	for _, key := range []string{"GOMEMLIMIT", "MEMORY_LIMIT", "MEMORY_RATIO"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	path := filepath.Join(t.TempDir(), "memory.max")
	if cgroup != "" {
		if err := os.WriteFile(path, []byte(cgroup+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	orig := cgroupMemoryMax
	cgroupMemoryMax = path

	prevLimit := debug.SetMemoryLimit(-1)
	t.Cleanup(func() {
		cgroupMemoryMax = orig
		debug.SetMemoryLimit(prevLimit)
	})
}

// defaultLimit is the GOMEMLIMIT expected for limit at the default ratio.
func defaultLimit(limit int64) int64 {
	ratio := DefaultMemoryRatio
	return int64(float64(limit) * ratio)
}

func TestConfigureFromEnv(t *testing.T) {
	const gib = 1 << 30

	tests := []struct {
		name       string
		env        map[string]string
		cgroup     string
		wantSource string
		wantLimit  int64
		wantRatio  float64
	}{
		{
			name:       "nothing configured",
			wantSource: "none",
		},
		{
			name:       "memory limit with default ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1073741824"},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  defaultLimit(gib),
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "custom ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1073741824", "MEMORY_RATIO": "0.5"},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  gib / 2,
			wantRatio:  0.5,
		},
		{
			name:       "out of range ratio falls back",
			env:        map[string]string{"MEMORY_LIMIT": "1073741824", "MEMORY_RATIO": "1.5"},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  defaultLimit(gib),
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "invalid memory limit",
			env:        map[string]string{"MEMORY_LIMIT": "lots"},
			wantSource: "none",
		},
		{
			name:       "negative memory limit",
			env:        map[string]string{"MEMORY_LIMIT": "-1"},
			wantSource: "none",
		},
		{
			name:       "cgroup limit",
			cgroup:     "2147483648",
			wantSource: "cgroup",
			wantLimit:  defaultLimit(2 * gib),
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "unlimited cgroup",
			cgroup:     "max",
			wantSource: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t, tt.cgroup)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			result := ConfigureFromEnv()
			if result.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", result.Source, tt.wantSource)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", result.Ratio, tt.wantRatio)
			}
			if result.Configured != (tt.wantLimit > 0) {
				t.Errorf("Configured = %v, want %v", result.Configured, tt.wantLimit > 0)
			}
			if tt.wantLimit > 0 {
				if got := debug.SetMemoryLimit(-1); got != tt.wantLimit {
					t.Errorf("runtime memory limit = %d, want %d", got, tt.wantLimit)
				}
			}
		})
	}
}

func TestConfigureFromEnvGOMEMLIMITWins(t *testing.T) {
	isolate(t, "")
	t.Setenv("GOMEMLIMIT", "500MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	debug.SetMemoryLimit(500 << 20)

	result := ConfigureFromEnv()
	if result.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want GOMEMLIMIT", result.Source)
	}
	if result.ContainerLimit != 0 {
		t.Errorf("ContainerLimit = %d, want 0 when GOMEMLIMIT is set", result.ContainerLimit)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{1 << 30, "1.0 GiB"},
		{5 << 40, "5.0 TiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
