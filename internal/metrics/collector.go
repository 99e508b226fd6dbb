package metrics

import (
	"context"
	"time"

	"asset-store/internal/logging"
)

// Inventory is a point-in-time summary of the record store.
type Inventory struct {
	ByKind         map[string]int
	TotalBytes     int64
	WithThumbnails int
}

// InventoryProvider supplies the inventory the Collector exports.
type InventoryProvider interface {
	Inventory(ctx context.Context) (Inventory, error)
}

// Collector periodically refreshes the inventory gauges.
type Collector struct {
	provider InventoryProvider
	interval time.Duration
	stopChan chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider InventoryProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inv, err := c.provider.Inventory(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	for _, kind := range []string{"image", "video", "audio", "other"} {
		AssetsTotal.WithLabelValues(kind).Set(float64(inv.ByKind[kind]))
	}
	AssetsBytesTotal.Set(float64(inv.TotalBytes))
	AssetsWithThumbnail.Set(float64(inv.WithThumbnails))

	logging.Debug("Metrics collected: kinds=%v, bytes=%d, thumbnails=%d",
		inv.ByKind, inv.TotalBytes, inv.WithThumbnails)
}
