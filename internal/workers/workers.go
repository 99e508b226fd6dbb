package workers

import (
	"os"
	"runtime"
	"strconv"
	"sync"
)

// OverrideEnv names the environment variable that pins the worker count.
const OverrideEnv = "HOUSEKEEPING_WORKERS"

// Count returns the number of workers for a task with the given CPU
// multiplier, capped at limit (0 means no cap). GOMAXPROCS is used as the
// CPU count so container limits are respected.
//
// A positive integer in HOUSEKEEPING_WORKERS overrides the calculation but
// is still capped at limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}

	return capAt(workers, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Group runs functions on at most n goroutines at a time. Go never blocks
// the caller; queued functions wait for a free slot inside their own
// goroutine. Wait blocks until every submitted function has returned.
type Group struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewGroup creates a Group with n concurrent slots. n below 1 is treated as 1.
func NewGroup(n int) *Group {
	if n < 1 {
		n = 1
	}
	return &Group{sem: make(chan struct{}, n)}
}

// Go schedules fn.
func (g *Group) Go(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.sem <- struct{}{}
		defer func() { <-g.sem }()
		fn()
	}()
}

// Wait blocks until all scheduled functions have completed.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Limit reports the number of concurrent slots.
func (g *Group) Limit() int {
	return cap(g.sem)
}
