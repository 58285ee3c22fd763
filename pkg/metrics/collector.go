package metrics

import (
	"time"

	"ipcrawler/pkg/limiter"
)

// Collector samples a Limiter's permit pools on an interval so scrapers
// observe concurrency utilization during a run, not just at its end.
type Collector struct {
	lim    *limiter.Limiter
	phases []string
	stopCh chan struct{}
}

// NewCollector creates a Collector that samples lim's global pool and the
// named per-phase pools.
func NewCollector(lim *limiter.Limiter, phases []string) *Collector {
	return &Collector{lim: lim, phases: phases, stopCh: make(chan struct{})}
}

// Start begins sampling in its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(2 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	GlobalPermitsInUse.Set(float64(c.lim.GlobalInUse()))
	for _, phase := range c.phases {
		PhasePermitsInUse.WithLabelValues(phase).Set(float64(c.lim.PhaseInUse(phase)))
	}
}
