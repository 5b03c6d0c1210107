package demo

import (
	"fmt"

	"github.com/confluentinc/ducktape-core/pkg/mark"
	"github.com/confluentinc/ducktape-core/pkg/types"
)

// funcEcho, funcCluster, funcIgnored, and funcSlow name the built-in test
// bodies Spawner dispatches to; they double as the Function field of every
// TestContext Suite produces.
const (
	funcEcho    = "test_echo"
	funcCluster = "test_cluster_nodes"
	funcIgnored = "test_ignored_by_default"
	funcSlow    = "test_requires_slow_env"
)

// Suite returns the fixed catalog of TestContexts a real Loader would have
// discovered from a suite file, expanded through pkg/mark so matrix,
// cluster-use-metadata, ignore, and env marks all get exercised by a single
// demo run.
func Suite(sessionID string) ([]types.TestContext, error) {
	var out []types.TestContext

	echoSeed := types.TestContext{
		SessionID:           sessionID,
		Module:              "tests.demo",
		Function:            funcEcho,
		ExpectedClusterSpec: types.SimpleLinux(1, ""),
	}
	echoContexts, err := mark.Expand(echoSeed, []types.Mark{
		{Kind: types.MarkMatrix, Axes: map[string][]any{"message": {"hello", "world"}}},
	})
	if err != nil {
		return nil, fmt.Errorf("demo: expand %s: %w", funcEcho, err)
	}
	out = append(out, echoContexts...)

	clusterSeed := types.TestContext{
		SessionID:           sessionID,
		Module:              "tests.demo",
		Function:            funcCluster,
		ExpectedClusterSpec: types.SimpleLinux(2, ""),
	}
	clusterContexts, err := mark.Expand(clusterSeed, []types.Mark{
		{Kind: types.MarkClusterUseMetadata, Metadata: map[string]string{"purpose": "smoke"}},
	})
	if err != nil {
		return nil, fmt.Errorf("demo: expand %s: %w", funcCluster, err)
	}
	out = append(out, clusterContexts...)

	ignoredSeed := types.TestContext{
		SessionID:           sessionID,
		Module:              "tests.demo",
		Function:            funcIgnored,
		ExpectedClusterSpec: types.SimpleLinux(1, ""),
	}
	ignoredContexts, err := mark.Expand(ignoredSeed, []types.Mark{
		{Kind: types.MarkIgnore},
	})
	if err != nil {
		return nil, fmt.Errorf("demo: expand %s: %w", funcIgnored, err)
	}
	out = append(out, ignoredContexts...)

	slowSeed := types.TestContext{
		SessionID:           sessionID,
		Module:              "tests.demo",
		Function:            funcSlow,
		ExpectedClusterSpec: types.SimpleLinux(1, ""),
	}
	slowContexts, err := mark.Expand(slowSeed, []types.Mark{
		{Kind: types.MarkEnv, EnvVars: map[string]string{"DUCKTAPE_DEMO_SLOW": "1"}},
	})
	if err != nil {
		return nil, fmt.Errorf("demo: expand %s: %w", funcSlow, err)
	}
	out = append(out, slowContexts...)

	return out, nil
}
