package demo

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/confluentinc/ducktape-core/pkg/health"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteExpandsMarks(t *testing.T) {
	contexts, err := Suite("sess-1")
	require.NoError(t, err)

	var echoCount, ignoredCount, slowCount int
	for _, ctx := range contexts {
		switch ctx.Function {
		case funcEcho:
			echoCount++
			assert.Contains(t, ctx.InjectedArgs, "message")
		case funcIgnored:
			ignoredCount++
			assert.True(t, ctx.Ignore)
		case funcSlow:
			slowCount++
		}
	}

	assert.Equal(t, 2, echoCount, "matrix over two messages should produce two contexts")
	assert.Equal(t, 1, ignoredCount)
	assert.Equal(t, 1, slowCount)
}

func TestSuiteSlowTestIgnoredWithoutEnv(t *testing.T) {
	os.Unsetenv("DUCKTAPE_DEMO_SLOW")
	contexts, err := Suite("sess-2")
	require.NoError(t, err)

	for _, ctx := range contexts {
		if ctx.Function == funcSlow {
			assert.True(t, ctx.Ignore, "slow test should be ignored when its env mark is unsatisfied")
		}
	}
}

func TestSuiteSlowTestRunsWithEnv(t *testing.T) {
	os.Setenv("DUCKTAPE_DEMO_SLOW", "1")
	defer os.Unsetenv("DUCKTAPE_DEMO_SLOW")

	contexts, err := Suite("sess-3")
	require.NoError(t, err)

	for _, ctx := range contexts {
		if ctx.Function == funcSlow {
			assert.False(t, ctx.Ignore)
		}
	}
}

func TestNewClusterRejectsNonPositiveNodes(t *testing.T) {
	_, err := NewCluster(ClusterConfig{NumNodes: 0})
	assert.Error(t, err)
}

func TestNewClusterShrinksAvailablePool(t *testing.T) {
	c, err := NewCluster(ClusterConfig{NumNodes: 4, ShrinkAfter: 1})
	require.NoError(t, err)

	before := c.NumAvailableNodes()
	sub, err := c.Alloc(types.SimpleLinux(1, ""))
	require.NoError(t, err)
	defer sub.Free(sub.Nodes()...)

	// One node was allocated and one more was retired by the shrink hook.
	assert.Equal(t, before-2, c.NumAvailableNodes())
}

func TestNewClusterHTTPHealthCheckMarksNodeUnavailable(t *testing.T) {
	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer unhealthy.Close()

	c, err := NewCluster(ClusterConfig{
		NumNodes:        1,
		HealthAddrs:     []string{unhealthy.URL},
		HealthCheckKind: health.CheckTypeHTTP,
	})
	require.NoError(t, err)

	all := c.All()
	require.Len(t, all.Specs, 1)

	// Health hysteresis keeps the node available until its failed probes
	// reach the retry threshold, so the first Retries-1 allocations succeed.
	for i := 1; i < health.DefaultConfig().Retries; i++ {
		sub, err := c.Alloc(types.SimpleLinux(1, ""))
		require.NoError(t, err, "node stays available below the failure threshold")
		require.NoError(t, sub.ReleaseAll())
	}

	_, err = c.Alloc(types.SimpleLinux(1, ""))
	assert.Error(t, err, "the only node has now failed its HTTP health check Retries times in a row, so allocation should fail")
}

func TestNewClusterHTTPHealthCheckAllowsHealthyNode(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	c, err := NewCluster(ClusterConfig{
		NumNodes:        1,
		HealthAddrs:     []string{healthy.URL},
		HealthCheckKind: health.CheckTypeHTTP,
	})
	require.NoError(t, err)

	sub, err := c.Alloc(types.SimpleLinux(1, ""))
	require.NoError(t, err)
	defer sub.Free(sub.Nodes()...)
}

func TestCaseAdapterDispatchesBuiltin(t *testing.T) {
	tc, err := newCaseAdapter(funcEcho, 1)
	require.NoError(t, err)

	nodes := []types.Node{{ID: "n1", OperatingSystem: "linux"}}
	require.NoError(t, tc.Setup(nodes, nil))

	data, err := tc.RunTest(map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", data["echoed"])
	assert.Equal(t, "n1", data["node"])
}

func TestCaseAdapterUnknownFunction(t *testing.T) {
	_, err := newCaseAdapter("does_not_exist", 1)
	assert.Error(t, err)
}
