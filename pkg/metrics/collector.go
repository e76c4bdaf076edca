package metrics

import (
	"time"

	"github.com/cuemby/fleetd/internal/storage"
)

// Collector periodically snapshots cluster/node counts from the storage
// adapter into the ClustersTotal/NodesTotal gauges, mirroring the teacher's
// collector.go poll-and-reset-counters loop re-pointed at clusters/nodes
// instead of warren's services/tasks/secrets/volumes.
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over the engine's store.
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval, matching the
// teacher's 15s poll cadence.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
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
	c.collectClusterMetrics()
	c.collectNodeMetrics()
}

func (c *Collector) collectClusterMetrics() {
	clusters, err := c.store.ListClusters()
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, cl := range clusters {
		counts[string(cl.Status)]++
	}
	for status, count := range counts {
		ClustersTotal.WithLabelValues(status).Set(float64(count))
	}
}

func (c *Collector) collectNodeMetrics() {
	nodes, err := c.store.ListNodes()
	if err != nil {
		return
	}

	counts := make(map[string]map[string]int)
	for _, n := range nodes {
		role := string(n.Role)
		status := string(n.Status)
		if counts[role] == nil {
			counts[role] = make(map[string]int)
		}
		counts[role][status]++
	}
	for role, statuses := range counts {
		for status, count := range statuses {
			NodesTotal.WithLabelValues(role, status).Set(float64(count))
		}
	}
}
