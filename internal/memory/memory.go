package memory

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"asset-store/internal/logging"
	"asset-store/internal/metrics"
)

// ErrStopped is returned by Wait once the monitor has been stopped.
var ErrStopped = errors.New("memory monitor stopped")

// Config holds memory backpressure configuration
type Config struct {
	// LimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	LimitBytes int64

	// HighWaterMark is the fraction of the limit below which paused work resumes (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which background work pauses (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often heap usage is sampled
	CheckInterval time.Duration
}

// DefaultConfig returns the defaults used by the asset store
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and pauses background thumbnail work while it
// is above the critical water mark. Paused work resumes once usage drops
// below the high water mark.
type Monitor struct {
	cfg    Config
	limit  int64
	log    *logging.Logger
	stop   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	alloc  uint64
	paused bool
	resume chan struct{}
}

// NewMonitor creates a monitor. Without an explicit limit it uses
// GOMEMLIMIT; with neither, Wait never blocks.
func NewMonitor(cfg Config) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig().CheckInterval
	}
	log := logging.With("memory")

	limit := cfg.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			log.Info("Backpressure using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		log.Debug("No memory limit configured, backpressure disabled")
	}

	return &Monitor{
		cfg:    cfg,
		limit:  limit,
		log:    log,
		stop:   make(chan struct{}),
		resume: make(chan struct{}),
	}
}

// Start begins sampling. It does nothing when no limit is known.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop ends sampling and releases every waiter with ErrStopped. It is safe
// to call more than once.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			m.update(stats.Alloc)
		case <-m.stop:
			return
		}
	}
}

// update applies one heap sample.
func (m *Monitor) update(alloc uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alloc = alloc
	if m.limit <= 0 {
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.cfg.CriticalWaterMark && !m.paused:
		m.log.Warn("Memory critical (%.1f%% of limit), pausing background work", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		go runtime.GC()
	case usage < m.cfg.HighWaterMark && m.paused:
		m.log.Info("Memory recovered (%.1f%% of limit), resuming background work", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while background work is paused. It returns ctx.Err() if ctx
// ends first and ErrStopped if the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	paused, resume := m.paused, m.resume
	m.mu.RUnlock()
	if !paused {
		return nil
	}

	select {
	case <-resume:
		return nil
	case <-m.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether background work is currently paused.
func (m *Monitor) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled heap allocation as a fraction of the
// limit, or 0 without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.alloc) / float64(m.limit)
}

// Limit returns the limit in bytes the monitor compares against.
func (m *Monitor) Limit() int64 {
	return m.limit
}
