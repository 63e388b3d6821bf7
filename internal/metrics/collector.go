package metrics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camwall/internal/events"
)

// Collector feeds the metrics from bus events.
type Collector struct {
	bus    *events.Bus
	logger *slog.Logger
	unsubs []func()

	mu        sync.Mutex
	requested map[string]time.Time // stream id -> request time
}

// NewCollector creates a collector for bus. Nothing is recorded until Start.
func NewCollector(bus *events.Bus, logger *slog.Logger) *Collector {
	return &Collector{bus: bus, logger: logger, requested: make(map[string]time.Time)}
}

// Start subscribes to the bus.
func (c *Collector) Start() {
	c.unsubs = append(c.unsubs,
		c.bus.Subscribe(func(e events.StreamRequestedEvent) {
			c.mu.Lock()
			c.requested[e.StreamID] = time.Now()
			c.mu.Unlock()
			StreamRequested(e.Transport)
		}),
		c.bus.Subscribe(func(e events.StreamStartedEvent) {
			c.mu.Lock()
			at, ok := c.requested[e.StreamID]
			c.mu.Unlock()
			var wait time.Duration
			if ok {
				wait = time.Since(at)
			}
			StreamStarted(e.Transport, wait)
		}),
		c.bus.Subscribe(func(e events.StreamFinishedEvent) {
			c.mu.Lock()
			delete(c.requested, e.StreamID)
			c.mu.Unlock()
			StreamFinished(e.Transport, e.Reason, e.Frames)
		}),
		c.bus.Subscribe(func(e events.PTZCommandEvent) {
			PTZCommand(e.Command, e.Error != "")
		}),
		c.bus.Subscribe(func(events.FocusChangedEvent) {
			FocusChanged()
		}),
		c.bus.Subscribe(func(e events.DirectoryReloadedEvent) {
			DirectoryLoaded(e.Cameras)
		}),
	)
	c.logger.Info("Metrics collector started")
}

// Stop unsubscribes from the bus.
func (c *Collector) Stop() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}
