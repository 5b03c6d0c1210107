package mark

import (
	"os"
	"testing"

	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedContext() types.TestContext {
	return types.TestContext{Module: "tests.suite", Function: "test_it"}
}

func TestExpandNoMarksReturnsSeed(t *testing.T) {
	result, err := Expand(seedContext(), nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Empty(t, result[0].InjectedArgs)
}

func TestExpandParametrize(t *testing.T) {
	marks := []types.Mark{{Kind: types.MarkParametrize, Args: map[string]any{"x": 5}}}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 5, result[0].InjectedArgs["x"])
}

func TestExpandMatrixCartesianProduct(t *testing.T) {
	marks := []types.Mark{{
		Kind: types.MarkMatrix,
		Axes: map[string][]any{
			"a": {1, 2},
			"b": {"x", "y"},
		},
	}}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	assert.Len(t, result, 4)

	seen := map[string]bool{}
	for _, ctx := range result {
		seen[ctx.TestID()] = true
	}
	assert.Len(t, seen, 4)
}

func TestExpandDefaultsBehavesLikeMatrixWhenAccEmpty(t *testing.T) {
	marks := []types.Mark{{
		Kind: types.MarkDefaults,
		Axes: map[string][]any{"retries": {1, 3}},
	}}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestExpandDefaultsDoesNotOverrideBoundKeys(t *testing.T) {
	marks := []types.Mark{
		{Kind: types.MarkParametrize, Args: map[string]any{"x": 1}},
		{Kind: types.MarkDefaults, Axes: map[string][]any{"x": {99}, "y": {"a", "b"}}},
	}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	require.Len(t, result, 2)
	for _, ctx := range result {
		assert.Equal(t, 1, ctx.InjectedArgs["x"])
	}
}

func TestExpandIgnoreAllWhenNoArgs(t *testing.T) {
	marks := []types.Mark{
		{Kind: types.MarkParametrize, Args: map[string]any{"x": 1}},
		{Kind: types.MarkIgnore},
	}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].Ignore)
}

func TestExpandIgnoreMatchingArgsOnly(t *testing.T) {
	marks := []types.Mark{
		{Kind: types.MarkMatrix, Axes: map[string][]any{"x": {1, 2}}},
		{Kind: types.MarkIgnore, IgnoreArgs: map[string]any{"x": 2}},
	}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	require.Len(t, result, 2)

	for _, ctx := range result {
		if ctx.InjectedArgs["x"] == 2 {
			assert.True(t, ctx.Ignore)
		} else {
			assert.False(t, ctx.Ignore)
		}
	}
}

func TestExpandIgnoreOnEmptyAccReturnsError(t *testing.T) {
	marks := []types.Mark{{Kind: types.MarkIgnore}}
	_, err := Expand(seedContext(), marks)
	assert.Error(t, err)
}

func TestExpandEnvIgnoresAllWhenUnsatisfied(t *testing.T) {
	require.NoError(t, os.Unsetenv("DUCKTAPE_CORE_TEST_ENV_VAR"))
	marks := []types.Mark{
		{Kind: types.MarkParametrize, Args: map[string]any{"x": 1}},
		{Kind: types.MarkEnv, EnvVars: map[string]string{"DUCKTAPE_CORE_TEST_ENV_VAR": "1"}},
	}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].Ignore)
}

func TestExpandEnvSatisfiedLeavesContextsAlone(t *testing.T) {
	t.Setenv("DUCKTAPE_CORE_TEST_ENV_VAR", "1")
	marks := []types.Mark{
		{Kind: types.MarkParametrize, Args: map[string]any{"x": 1}},
		{Kind: types.MarkEnv, EnvVars: map[string]string{"DUCKTAPE_CORE_TEST_ENV_VAR": "1"}},
	}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.False(t, result[0].Ignore)
}

func TestExpandClusterUseMetadataNeverOverwrites(t *testing.T) {
	marks := []types.Mark{
		{Kind: types.MarkParametrize, Args: map[string]any{"x": 1}},
		{Kind: types.MarkClusterUseMetadata, Metadata: map[string]string{"owner": "team-a"}},
		{Kind: types.MarkClusterUseMetadata, Metadata: map[string]string{"owner": "team-b"}},
	}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "team-a", result[0].ClusterUseMetadata["owner"])
}

func TestExpandDedupesByTestID(t *testing.T) {
	marks := []types.Mark{
		{Kind: types.MarkMatrix, Axes: map[string][]any{"x": {1}}},
		{Kind: types.MarkParametrize, Args: map[string]any{"x": 1}},
	}
	result, err := Expand(seedContext(), marks)
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestApplyOverrideStripsStructuralMarksAndReparametrizes(t *testing.T) {
	marks := []types.Mark{
		{Kind: types.MarkMatrix, Axes: map[string][]any{"x": {1, 2, 3}}},
		{Kind: types.MarkClusterUseMetadata, Metadata: map[string]string{"owner": "team-a"}},
	}
	result, err := ApplyOverride(seedContext(), marks, map[string]any{"x": 42})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 42, result[0].InjectedArgs["x"])
	assert.Equal(t, "team-a", result[0].ClusterUseMetadata["owner"])
}

func TestApplyOverrideRoundTripsIdentity(t *testing.T) {
	marks := []types.Mark{{Kind: types.MarkParametrize, Args: map[string]any{"x": 1}}}
	before, err := Expand(seedContext(), marks)
	require.NoError(t, err)

	after, err := ApplyOverride(seedContext(), marks, map[string]any{"x": 1})
	require.NoError(t, err)

	require.Len(t, before, 1)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].TestID(), after[0].TestID())
	assert.Equal(t, before[0].InjectedArgs, after[0].InjectedArgs)
}
