package scheduler

import (
	"testing"

	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctxWithNodes(testID string, numNodes int) types.TestContext {
	return types.TestContext{
		Module:              "tests.suite",
		Function:            testID,
		ExpectedClusterSpec: types.SimpleLinux(numNodes, ""),
	}
}

func TestPeekReturnsLargestFittingFirst(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("small", 1))
	s.Put(ctxWithNodes("big", 5))
	s.Put(ctxWithNodes("medium", 3))

	ctx, found, err := s.Peek(5)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "big", ctx.Function)
}

func TestPeekSkipsTooLargeForAvailable(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("big", 5))
	s.Put(ctxWithNodes("small", 1))

	ctx, found, err := s.Peek(2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "small", ctx.Function)
}

func TestPeekNotFoundWhenNothingFits(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("big", 5))

	_, found, err := s.Peek(1)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestPeekErrEmptyWhenNoEntries(t *testing.T) {
	s := New()
	_, found, err := s.Peek(10)
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestTieBreakPreservesInsertionOrder(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("first", 2))
	s.Put(ctxWithNodes("second", 2))
	s.Put(ctxWithNodes("third", 2))

	ctx, found, err := s.Peek(2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", ctx.Function)
}

func TestNextRemovesReturnedEntry(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("only", 1))

	ctx, found, err := s.Next(5)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "only", ctx.Function)
	assert.Equal(t, 0, s.Len())

	_, found, err = s.Next(5)
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRemoveIsNoopWhenAbsent(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("kept", 1))

	s.Remove(ctxWithNodes("not-present", 1))
	assert.Equal(t, 1, s.Len())
}

func TestRemoveDisambiguatesByScheduleIndex(t *testing.T) {
	s := New()
	original := ctxWithNodes("flaky", 1)
	original.ScheduleIndex = 0
	rerun := ctxWithNodes("flaky", 1)
	rerun.ScheduleIndex = 1

	s.Put(original)
	s.Put(rerun)
	require.Equal(t, 2, s.Len())

	s.Remove(original)
	assert.Equal(t, 1, s.Len())

	ctx, found, err := s.Peek(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, ctx.ScheduleIndex)
}

func TestFilterUnschedulableTestsRemovesOversizedEntries(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("fits", 2))
	s.Put(ctxWithNodes("never-fits", 100))

	removed := s.FilterUnschedulableTests(10)
	require.Len(t, removed, 1)
	assert.Equal(t, "never-fits", removed[0].Function)
	assert.Equal(t, 1, s.Len())
}

func TestFilterUnschedulableTestsNoneRemoved(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("a", 2))
	s.Put(ctxWithNodes("b", 3))

	removed := s.FilterUnschedulableTests(10)
	assert.Empty(t, removed)
	assert.Equal(t, 2, s.Len())
}

func TestPutReSortsAfterFilter(t *testing.T) {
	s := New()
	s.Put(ctxWithNodes("huge", 20))
	s.Put(ctxWithNodes("small", 1))
	s.FilterUnschedulableTests(10)

	s.Put(ctxWithNodes("medium", 4))
	ctx, found, err := s.Peek(10)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "medium", ctx.Function)
}
