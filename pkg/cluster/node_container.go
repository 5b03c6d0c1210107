package cluster

import (
	"sync"

	"github.com/confluentinc/ducktape-core/pkg/types"
)

// NodeContainer is a mapping operating_system -> ordered list of Node. Nodes
// are appended FIFO within an OS bucket and popped from the front on
// allocation, matching the teacher's queue-like bucket usage in its own
// scheduler.
type NodeContainer struct {
	mu      sync.Mutex
	buckets map[string][]types.Node
}

// NewNodeContainer returns an empty container.
func NewNodeContainer() *NodeContainer {
	return &NodeContainer{buckets: make(map[string][]types.Node)}
}

// AddNode appends a node to its OS bucket.
func (c *NodeContainer) AddNode(n types.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets[n.OperatingSystem] = append(c.buckets[n.OperatingSystem], n)
}

// AddNodes appends several nodes.
func (c *NodeContainer) AddNodes(nodes []types.Node) {
	for _, n := range nodes {
		c.AddNode(n)
	}
}

// RemoveNode removes a node by identity. Returns ErrNodeNotPresent if absent.
func (c *NodeContainer) RemoveNode(n types.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.buckets[n.OperatingSystem]
	for i, candidate := range bucket {
		if candidate.ID == n.ID {
			c.buckets[n.OperatingSystem] = append(bucket[:i], bucket[i+1:]...)
			return nil
		}
	}
	return &ErrNodeNotPresent{NodeID: n.ID}
}

// Elements returns a snapshot of nodes, optionally filtered by operating
// system ("" means all OSes).
func (c *NodeContainer) Elements(os string) []types.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	if os != "" {
		return append([]types.Node(nil), c.buckets[os]...)
	}

	var all []types.Node
	for _, bucket := range c.buckets {
		all = append(all, bucket...)
	}
	return all
}

// Size returns the total node count across all buckets.
func (c *NodeContainer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, bucket := range c.buckets {
		total += len(bucket)
	}
	return total
}

// Clone returns a deep copy of the container.
func (c *NodeContainer) Clone() *NodeContainer {
	c.mu.Lock()
	defer c.mu.Unlock()

	clone := NewNodeContainer()
	for os, bucket := range c.buckets {
		clone.buckets[os] = append([]types.Node(nil), bucket...)
	}
	return clone
}

// CanRemoveSpec is a pure predicate: true iff each (OS, node_type) bucket in
// spec has at least the requested count available, ignoring health.
func (c *NodeContainer) CanRemoveSpec(spec types.ClusterSpec) bool {
	return c.AttemptRemoveSpec(spec) == ""
}

// AttemptRemoveSpec returns "" if spec can be satisfied by total node counts
// alone (no mutation, no health checks), else a human-readable shortfall
// message.
func (c *NodeContainer) AttemptRemoveSpec(spec types.ClusterSpec) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range spec.Specs {
		available := c.countMatching(s)
		if available < s.NumNodes {
			return shortfallMessage(s, available)
		}
	}
	return ""
}

func (c *NodeContainer) countMatching(s types.NodeSpec) int {
	count := 0
	for _, n := range c.buckets[s.OperatingSystem] {
		if s.Matches(n.OperatingSystem, n.NodeType) {
			count++
		}
	}
	return count
}

func shortfallMessage(s types.NodeSpec, available int) string {
	return "requested " + itoa(s.NumNodes) + " " + s.OperatingSystem + " nodes, only " + itoa(available) + " present"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// RemoveSpec is the atomic allocation primitive. For each OS group in spec,
// it pops nodes from the front of that OS bucket; a popped node whose
// Available() returns false is set aside as bad and popping continues. If the
// bucket empties before enough healthy (good) nodes are found, every good
// node collected so far across the whole spec is rolled back into the
// container (bad nodes stay set aside) and the call fails with
// InsufficientHealthyNodesError. If the total node count is too small to even
// attempt the spec, it fails fast with InsufficientResourcesError without
// mutating anything or touching Available().
func (c *NodeContainer) RemoveSpec(spec types.ClusterSpec) (good, bad []types.Node, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range spec.Specs {
		if c.countMatching(s) < s.NumNodes {
			return nil, nil, &InsufficientResourcesError{Spec: spec, Message: shortfallMessage(s, c.countMatching(s))}
		}
	}

	var allGood, allBad []types.Node

	for _, s := range spec.Specs {
		bucket := c.buckets[s.OperatingSystem]
		var remaining []types.Node
		var groupGood []types.Node
		var groupBad []types.Node

		for _, n := range bucket {
			if !s.Matches(n.OperatingSystem, n.NodeType) {
				remaining = append(remaining, n)
				continue
			}
			if len(groupGood) >= s.NumNodes {
				remaining = append(remaining, n)
				continue
			}
			if n.Available() {
				groupGood = append(groupGood, n)
			} else {
				groupBad = append(groupBad, n)
			}
		}

		c.buckets[s.OperatingSystem] = remaining

		if len(groupGood) < s.NumNodes {
			// Roll back: return every good node collected so far (this group
			// and prior groups) to the container; bad nodes remain set aside
			// for the caller to retire.
			for _, n := range allGood {
				c.buckets[n.OperatingSystem] = append(c.buckets[n.OperatingSystem], n)
			}
			for _, n := range groupGood {
				c.buckets[n.OperatingSystem] = append(c.buckets[n.OperatingSystem], n)
			}
			allBad = append(allBad, groupBad...)
			return nil, allBad, &InsufficientHealthyNodesError{
				Spec:     spec,
				Message:  shortfallMessage(s, len(groupGood)),
				BadNodes: allBad,
			}
		}

		allGood = append(allGood, groupGood...)
		allBad = append(allBad, groupBad...)
	}

	return allGood, allBad, nil
}
