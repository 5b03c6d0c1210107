package metrics

import (
	"time"
)

// ClusterSource is the subset of cluster bookkeeping the collector polls.
// Satisfied by *cluster.BaseCluster; declared here (rather than imported)
// to avoid pkg/metrics depending on pkg/cluster.
type ClusterSource interface {
	NumAvailableNodes() int
	NumInUseNodes() int
	MaxUsed() int
}

// SchedulerSource is the subset of scheduler state the collector polls.
type SchedulerSource interface {
	Len() int
}

// Collector periodically samples cluster and scheduler state into gauges.
// Counters (AllocFailuresTotal, TestsCompletedTotal, ...) are incremented
// inline by the components that observe the event and are not touched here.
type Collector struct {
	cluster   ClusterSource
	scheduler SchedulerSource
	stopCh    chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(cluster ClusterSource, scheduler SchedulerSource) *Collector {
	return &Collector{
		cluster:   cluster,
		scheduler: scheduler,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
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
	if c.cluster != nil {
		NodesAvailable.Set(float64(c.cluster.NumAvailableNodes()))
		NodesInUse.Set(float64(c.cluster.NumInUseNodes()))
		MaxUsedNodes.Set(float64(c.cluster.MaxUsed()))
	}
	if c.scheduler != nil {
		TestsScheduled.Set(float64(c.scheduler.Len()))
	}
}
