package demo

import (
	"context"
	"fmt"

	"github.com/confluentinc/ducktape-core/pkg/cluster"
	"github.com/confluentinc/ducktape-core/pkg/health"
	"github.com/confluentinc/ducktape-core/pkg/types"
)

// ClusterConfig controls the synthetic node pool NewCluster builds.
type ClusterConfig struct {
	NumNodes int
	// ShrinkAfter, if > 0, retires one still-available node every ShrinkAfter
	// allocations, simulating spec.md §5's cluster-shrinkage scenario. Zero
	// disables shrinkage.
	ShrinkAfter int
	// HealthAddrs, if non-empty, backs each node's Account.Available() with a
	// health.Checker against the corresponding address instead of the default
	// always-healthy predicate. Must be empty or len(HealthAddrs) == NumNodes.
	HealthAddrs []string
	// HealthCheckKind selects which health.Checker HealthAddrs are checked
	// with: health.CheckTypeHTTP treats each address as a URL probed with
	// HTTPChecker; anything else (including the zero value) uses TCPChecker
	// against a host:port address.
	HealthCheckKind health.CheckType
}

// NewCluster builds a cluster.BaseCluster over cfg.NumNodes synthetic linux
// nodes. When cfg.ShrinkAfter > 0, every ShrinkAfter-th successful Alloc
// also retires one node that is still in the available pool (never one of
// the nodes it just allocated), so later allocations see a shrinking pool
// exactly as a real provider's node failures would present.
func NewCluster(cfg ClusterConfig) (*cluster.BaseCluster, error) {
	if cfg.NumNodes <= 0 {
		return nil, fmt.Errorf("demo: NumNodes must be positive, got %d", cfg.NumNodes)
	}
	if len(cfg.HealthAddrs) != 0 && len(cfg.HealthAddrs) != cfg.NumNodes {
		return nil, fmt.Errorf("demo: HealthAddrs must have %d entries or be empty, got %d", cfg.NumNodes, len(cfg.HealthAddrs))
	}

	nodes := make([]types.Node, cfg.NumNodes)
	for i := range nodes {
		node := types.Node{
			ID:              fmt.Sprintf("demo-node-%02d", i),
			OperatingSystem: "linux",
		}
		if len(cfg.HealthAddrs) != 0 {
			addr := cfg.HealthAddrs[i]
			var checker health.Checker
			if cfg.HealthCheckKind == health.CheckTypeHTTP {
				checker = health.NewHTTPChecker(addr)
			} else {
				checker = health.NewTCPChecker(addr)
			}

			// status applies the same consecutive-failure/success hysteresis
			// a real node-health monitor would: a node doesn't flip unhealthy
			// on one missed check, and stays assumed-healthy through its
			// start period.
			status := health.NewStatus()
			checkCfg := health.DefaultConfig()
			node.Account = types.Account{
				Hostname:        addr,
				OperatingSystem: "linux",
				Probe: func() bool {
					if status.InStartPeriod(checkCfg) {
						return true
					}
					status.Update(checker.Check(context.Background()), checkCfg)
					return status.Healthy
				},
			}
		}
		nodes[i] = node
	}

	if cfg.ShrinkAfter <= 0 {
		return cluster.NewBaseCluster(nodes, nil), nil
	}

	// allocCount is only ever touched from within doAlloc, which BaseCluster.Alloc
	// always calls while holding its own mutex, so no separate lock is needed here.
	var allocCount int
	doAlloc := func(available *cluster.NodeContainer, spec types.ClusterSpec) ([]types.Node, []types.Node, error) {
		good, bad, err := available.RemoveSpec(spec)
		if err != nil {
			return good, bad, err
		}
		allocCount++
		if allocCount%cfg.ShrinkAfter == 0 {
			// Retire a still-available node (never one just allocated into
			// good, which BaseCluster is about to mark in-use) so the pool
			// visibly shrinks without disturbing this allocation's result.
			remaining := available.Elements("")
			if len(remaining) > 0 {
				_ = available.RemoveNode(remaining[0])
			}
		}
		return good, bad, nil
	}
	return cluster.NewBaseCluster(nodes, doAlloc), nil
}
