package demo

import (
	"fmt"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/types"
)

// testBody is the signature every built-in demo test implements; RunTest
// is handed the nodes and injected args resolved for that schedule index.
type testBody func(nodes []types.Node, args map[string]any) (map[string]any, error)

// builtins maps a TestContext's Function to the body Spawner's worker
// subprocess runs, standing in for a real loader's compiled test classes.
var builtins = map[string]testBody{
	funcEcho:    runEcho,
	funcCluster: runClusterNodes,
	funcIgnored: runIgnoredBody,
	funcSlow:    runSlowBody,
}

func runEcho(nodes []types.Node, args map[string]any) (map[string]any, error) {
	message, _ := args["message"].(string)
	return map[string]any{"echoed": message, "node": nodes[0].ID}, nil
}

func runClusterNodes(nodes []types.Node, _ map[string]any) (map[string]any, error) {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return map[string]any{"node_ids": ids}, nil
}

// runIgnoredBody never actually runs: its TestContext carries Ignore=true, so
// RunnerClient.Run short-circuits before the body would be called. It exists
// only so funcIgnored has a resolvable entry in builtins.
func runIgnoredBody([]types.Node, map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("demo: %s should never run (ignored)", funcIgnored)
}

func runSlowBody(nodes []types.Node, _ map[string]any) (map[string]any, error) {
	time.Sleep(50 * time.Millisecond)
	return map[string]any{"node": nodes[0].ID}, nil
}

// caseAdapter wraps a testBody as a worker.TestCase, using min as the
// subcluster size the body requires.
type caseAdapter struct {
	min  int
	body testBody

	nodes []types.Node
}

func newCaseAdapter(function string, minNodes int) (*caseAdapter, error) {
	body, ok := builtins[function]
	if !ok {
		return nil, fmt.Errorf("demo: no built-in test body for function %q", function)
	}
	return &caseAdapter{min: minNodes, body: body}, nil
}

func (c *caseAdapter) MinClusterSpec() types.ClusterSpec {
	return types.SimpleLinux(c.min, "")
}

func (c *caseAdapter) Setup(nodes []types.Node, _ map[string]any) error {
	c.nodes = nodes
	return nil
}

func (c *caseAdapter) RunTest(args map[string]any) (map[string]any, error) {
	return c.body(c.nodes, args)
}

func (c *caseAdapter) Teardown() error           { return nil }
func (c *caseAdapter) StopServices() error       { return nil }
func (c *caseAdapter) CollectLogs(bool) error     { return nil }
func (c *caseAdapter) CleanServices() error      { return nil }
