package cluster

import (
	"sync"

	"github.com/confluentinc/ducktape-core/pkg/log"
	"github.com/confluentinc/ducktape-core/pkg/metrics"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/rs/zerolog"
)

// Subcluster is a disjoint slice of the cluster's nodes handed to one test
// for its duration.
type Subcluster interface {
	Nodes() []types.Node
	Available() types.ClusterSpec
	Used() types.ClusterSpec
	Alloc(spec types.ClusterSpec) ([]types.Node, error)
	Free(nodes ...types.Node) error
	// ReleaseAll returns every node in the subcluster (available or in use)
	// back to the parent Cluster's available pool, ending the subcluster's
	// lifetime.
	ReleaseAll() error
}

// Cluster is the abstract resource pool contract: allocate nodes matching a
// ClusterSpec, free them back, and report available/used/all snapshots.
type Cluster interface {
	Alloc(spec types.ClusterSpec) (Subcluster, error)
	Free(nodes ...types.Node) error
	Available() types.ClusterSpec
	Used() types.ClusterSpec
	All() types.ClusterSpec
	NumAvailableNodes() int
	MaxUsed() int
}

// DoAllocFunc is the provider hook BaseCluster delegates to. The default,
// set by NewBaseCluster, is available.RemoveSpec; a provider (e.g. the demo
// cluster in pkg/demo) may wrap it to simulate node retirement/shrinkage.
type DoAllocFunc func(available *NodeContainer, spec types.ClusterSpec) (good, bad []types.Node, err error)

// BaseCluster implements the bookkeeping spec.md describes for Cluster: two
// disjoint NodeContainers (available/in_use) plus a monotonic max_used
// counter. The supervisor is the sole mutator; BaseCluster itself presents a
// blocking, mutex-guarded interface so a provider's DoAlloc may safely call
// out to an external system without corrupting bookkeeping.
type BaseCluster struct {
	mu        sync.Mutex
	available *NodeContainer
	inUse     *NodeContainer
	maxUsed   int
	doAlloc   DoAllocFunc
	logger    zerolog.Logger
}

// NewBaseCluster builds a cluster from an initial node set. doAlloc may be
// nil to use the default (NodeContainer.RemoveSpec).
func NewBaseCluster(nodes []types.Node, doAlloc DoAllocFunc) *BaseCluster {
	available := NewNodeContainer()
	available.AddNodes(nodes)

	if doAlloc == nil {
		doAlloc = func(avail *NodeContainer, spec types.ClusterSpec) ([]types.Node, []types.Node, error) {
			return avail.RemoveSpec(spec)
		}
	}

	return &BaseCluster{
		available: available,
		inUse:     NewNodeContainer(),
		doAlloc:   doAlloc,
		logger:    log.WithComponent("cluster"),
	}
}

// Alloc allocates a subcluster matching spec. On success, updates max_used.
// On InsufficientHealthyNodesError, bad nodes are permanently retired (never
// re-added to available) before the error is returned, matching spec.md §5's
// shrinkage model.
func (c *BaseCluster) Alloc(spec types.ClusterSpec) (Subcluster, error) {
	timer := metrics.NewTimer()
	c.mu.Lock()
	defer c.mu.Unlock()

	good, bad, err := c.doAlloc(c.available, spec)
	timer.ObserveDuration(metrics.AllocDuration)

	if err != nil {
		switch err.(type) {
		case *InsufficientHealthyNodesError:
			metrics.AllocFailuresTotal.WithLabelValues("insufficient_healthy_nodes").Inc()
		case *InsufficientResourcesError:
			metrics.AllocFailuresTotal.WithLabelValues("insufficient_resources").Inc()
		}
		return nil, err
	}

	c.inUse.AddNodes(good)
	if used := c.inUse.Size(); used > c.maxUsed {
		c.maxUsed = used
		metrics.MaxUsedNodes.Set(float64(c.maxUsed))
	}

	c.logger.Debug().Int("nodes", len(good)).Str("spec", spec.String()).Msg("allocated subcluster")
	return newFiniteSubcluster(good, c), nil
}

// Free returns nodes to the available pool. Fails with ErrNodeNotPresent if a
// node was not in use.
func (c *BaseCluster) Free(nodes ...types.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freeLocked(nodes...)
}

func (c *BaseCluster) freeLocked(nodes ...types.Node) error {
	for _, n := range nodes {
		if err := c.inUse.RemoveNode(n); err != nil {
			return err
		}
		c.available.AddNode(n)
	}
	return nil
}

// Available returns a snapshot ClusterSpec of currently-available nodes.
func (c *BaseCluster) Available() types.ClusterSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.FromNodes(c.available.Elements(""))
}

// Used returns a snapshot ClusterSpec of currently in-use nodes.
func (c *BaseCluster) Used() types.ClusterSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.FromNodes(c.inUse.Elements(""))
}

// All returns available + used as a single snapshot.
func (c *BaseCluster) All() types.ClusterSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.FromNodes(c.available.Elements("")).Add(types.FromNodes(c.inUse.Elements("")))
}

// NumAvailableNodes returns the total available node count across all OSes.
func (c *BaseCluster) NumAvailableNodes() int {
	return c.available.Size()
}

// NumInUseNodes returns the total in-use node count across all OSes.
func (c *BaseCluster) NumInUseNodes() int {
	return c.inUse.Size()
}

// MaxUsed returns the monotonic high-water mark of nodes in use.
func (c *BaseCluster) MaxUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxUsed
}

// RetireNode permanently removes a node from the in-use pool without
// returning it to available, modeling cluster shrinkage: the node is gone
// for the rest of the run and All() shrinks accordingly.
func (c *BaseCluster) RetireNode(n types.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.inUse.RemoveNode(n)
	_ = c.available.RemoveNode(n)
}
