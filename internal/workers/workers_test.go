package workers

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{"CPU-bound task (1.0x multiplier)", 1.0, 0, 1, availableCPU},
		{"I/O-bound task (2.0x multiplier)", 2.0, 0, 1, availableCPU * 2},
		{"With limit lower than calculated", 2.0, 2, 1, 2},
		{"Zero multiplier", 0.0, 0, 1, 1},
		{"Negative multiplier", -1.0, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int
	}{
		{"Valid override", "8", 0, 8},
		{"Override with limit", "20", 10, 10},
		{"Override below limit", "5", 10, 5},
		{"Invalid override (non-numeric)", "invalid", 0, -1},
		{"Invalid override (zero)", "0", 0, -1},
		{"Invalid override (negative)", "-5", 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.envValue)

			got := Count(1.0, tt.limit)

			if tt.expected < 0 {
				if got < 1 {
					t.Errorf("Count with invalid override should return at least 1, got %d", got)
				}
				return
			}
			if got != tt.expected {
				t.Errorf("Count(1.0, %d) with %s=%s = %d, want %d",
					tt.limit, OverrideEnv, tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestForIO(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	if got := ForIO(8); got < 1 || got > 8 {
		t.Errorf("ForIO(8) = %d, want 1..8", got)
	}
	if got := ForCPU(1); got != 1 {
		t.Errorf("ForCPU(1) = %d, want 1", got)
	}
}

func TestGroupBoundsConcurrency(t *testing.T) {
	g := NewGroup(2)
	if g.Limit() != 2 {
		t.Fatalf("Limit() = %d, want 2", g.Limit())
	}

	var inFlight, peak, done int32
	for i := 0; i < 10; i++ {
		g.Go(func() {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			atomic.AddInt32(&done, 1)
		})
	}
	g.Wait()

	if done != 10 {
		t.Errorf("completed %d functions, want 10", done)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestGroupGoDoesNotBlock(t *testing.T) {
	g := NewGroup(1)
	release := make(chan struct{})

	g.Go(func() { <-release })

	submitted := make(chan struct{})
	go func() {
		g.Go(func() {})
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("Go blocked while the only slot was busy")
	}

	close(release)
	g.Wait()
}

func TestNewGroupMinimum(t *testing.T) {
	if got := NewGroup(0).Limit(); got != 1 {
		t.Errorf("NewGroup(0).Limit() = %d, want 1", got)
	}
}
