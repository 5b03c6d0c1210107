package cluster

import (
	"sync"

	"github.com/confluentinc/ducktape-core/pkg/types"
)

// FiniteSubcluster wraps a fixed-set list of pre-allocated nodes handed to
// one test for its duration. It tracks its own available/in_use split (a
// test may further sub-allocate its subcluster across services) and frees
// its remaining nodes back to the parent BaseCluster when released.
type FiniteSubcluster struct {
	mu        sync.Mutex
	available map[string]types.Node // node ID -> node
	inUse     map[string]types.Node
	parent    *BaseCluster
}

func newFiniteSubcluster(nodes []types.Node, parent *BaseCluster) *FiniteSubcluster {
	available := make(map[string]types.Node, len(nodes))
	for _, n := range nodes {
		available[n.ID] = n
	}
	return &FiniteSubcluster{
		available: available,
		inUse:     make(map[string]types.Node),
		parent:    parent,
	}
}

// Nodes returns every node in this subcluster, available or in use.
func (f *FiniteSubcluster) Nodes() []types.Node {
	f.mu.Lock()
	defer f.mu.Unlock()

	nodes := make([]types.Node, 0, len(f.available)+len(f.inUse))
	for _, n := range f.available {
		nodes = append(nodes, n)
	}
	for _, n := range f.inUse {
		nodes = append(nodes, n)
	}
	return nodes
}

// Available returns a snapshot ClusterSpec of this subcluster's unused nodes.
func (f *FiniteSubcluster) Available() types.ClusterSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.FromNodes(mapValues(f.available))
}

// Used returns a snapshot ClusterSpec of this subcluster's nodes currently
// handed to a service.
func (f *FiniteSubcluster) Used() types.ClusterSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.FromNodes(mapValues(f.inUse))
}

// Alloc picks matching nodes out of this subcluster's own available set
// (a within-test allocation, e.g. one service claiming 2 of the test's 5
// nodes). It does not talk to the parent cluster.
func (f *FiniteSubcluster) Alloc(spec types.ClusterSpec) ([]types.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := NewNodeContainer()
	tmp.AddNodes(mapValues(f.available))

	good, _, err := tmp.RemoveSpec(spec)
	if err != nil {
		return nil, err
	}

	for _, n := range good {
		delete(f.available, n.ID)
		f.inUse[n.ID] = n
	}
	return good, nil
}

// Free returns nodes to this subcluster's own available set (not the parent
// cluster — see ReleaseAll for returning the whole subcluster to the parent).
func (f *FiniteSubcluster) Free(nodes ...types.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range nodes {
		if _, ok := f.inUse[n.ID]; !ok {
			return &ErrNodeNotPresent{NodeID: n.ID}
		}
		delete(f.inUse, n.ID)
		f.available[n.ID] = n
	}
	return nil
}

// ReleaseAll returns every node in this subcluster (available or in use)
// back to the parent BaseCluster's available pool. Called by the supervisor
// once a worker's FINISHED event has been handled.
func (f *FiniteSubcluster) ReleaseAll() error {
	f.mu.Lock()
	all := mapValues(f.available)
	all = append(all, mapValues(f.inUse)...)
	f.available = make(map[string]types.Node)
	f.inUse = make(map[string]types.Node)
	f.mu.Unlock()

	if len(all) == 0 {
		return nil
	}
	return f.parent.Free(all...)
}

func mapValues(m map[string]types.Node) []types.Node {
	out := make([]types.Node, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
