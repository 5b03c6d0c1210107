package runner

import (
	"testing"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/cluster"
	"github.com/confluentinc/ducktape-core/pkg/scheduler"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/confluentinc/ducktape-core/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inProcessProcess models a worker subprocess as a goroutine, so tests
// exercise the real IPC wire without forking an OS process.
type inProcessProcess struct {
	done chan error
}

func (p *inProcessProcess) Wait() error { return <-p.done }
func (p *inProcessProcess) Kill() error { return nil }

// scriptedTestCase always returns a fixed status, modeling a deterministic
// test body for the supervisor-level tests in this file.
type scriptedTestCase struct {
	shouldFail bool
}

func (s *scriptedTestCase) MinClusterSpec() types.ClusterSpec { return types.ClusterSpec{} }
func (s *scriptedTestCase) Setup([]types.Node, map[string]any) error { return nil }
func (s *scriptedTestCase) RunTest(map[string]any) (map[string]any, error) {
	if s.shouldFail {
		return nil, errTestFailed
	}
	return map[string]any{"ok": true}, nil
}
func (s *scriptedTestCase) Teardown() error         { return nil }
func (s *scriptedTestCase) StopServices() error     { return nil }
func (s *scriptedTestCase) CollectLogs(bool) error  { return nil }
func (s *scriptedTestCase) CleanServices() error    { return nil }

var errTestFailed = assertError("scripted failure")

type assertError string

func (e assertError) Error() string { return string(e) }

// inProcessSpawner runs the worker.RunnerClient lifecycle in a goroutine
// instead of forking an OS process.
type inProcessSpawner struct {
	shouldFail func(testID string) bool
}

func (sp *inProcessSpawner) Spawn(ctx types.TestContext, addr, sourceID string) (Process, error) {
	proc := &inProcessProcess{done: make(chan error, 1)}
	go func() {
		client, err := worker.New(addr, sourceID, ctx.TestID(), ctx.ScheduleIndex)
		if err != nil {
			proc.done <- err
			return
		}
		defer client.Close()

		tc := &scriptedTestCase{shouldFail: sp.shouldFail(ctx.TestID())}
		_, err = client.Run(tc, ctx.Ignore, ctx.InjectedArgs)
		proc.done <- err
	}()
	return proc, nil
}

func newTestSession() types.SessionContext {
	return types.SessionContext{
		SessionID:         "test-session",
		MaxParallel:       4,
		DeflakeNum:        1,
		FinishJoinTimeout: 2 * time.Second,
		TestRunnerTimeout: 2 * time.Second,
		MinPort:           22000,
		MaxPort:           22100,
	}
}

func newTestCluster(n int) *cluster.BaseCluster {
	nodes := make([]types.Node, n)
	for i := range nodes {
		nodes[i] = types.Node{ID: "node" + string(rune('a'+i)), OperatingSystem: "linux"}
	}
	return cluster.NewBaseCluster(nodes, nil)
}

func TestSupervisorRunsAllTestsToPass(t *testing.T) {
	c := newTestCluster(4)
	sched := scheduler.New()
	sched.Put(types.TestContext{Module: "tests.suite", Function: "test_a", ExpectedClusterSpec: types.SimpleLinux(1, "")})
	sched.Put(types.TestContext{Module: "tests.suite", Function: "test_b", ExpectedClusterSpec: types.SimpleLinux(1, "")})

	spawner := &inProcessSpawner{shouldFail: func(string) bool { return false }}
	sup, err := New(newTestSession(), c, sched, spawner, nil)
	require.NoError(t, err)

	results, err := sup.Run()
	require.NoError(t, err)
	assert.Len(t, results.Items, 2)
	assert.Equal(t, 2, results.NumPassed())
}

func TestSupervisorDeflakeMarksFlakyOnEventualPass(t *testing.T) {
	c := newTestCluster(2)
	sched := scheduler.New()
	sched.Put(types.TestContext{Module: "tests.suite", Function: "test_flaky", ExpectedClusterSpec: types.SimpleLinux(1, "")})

	attempt := 0
	spawner := &inProcessSpawner{shouldFail: func(string) bool {
		attempt++
		return attempt == 1
	}}

	session := newTestSession()
	session.DeflakeNum = 2
	sup, err := New(session, c, sched, spawner, nil)
	require.NoError(t, err)

	results, err := sup.Run()
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	assert.Equal(t, types.StatusFlaky, results.Items[0].Status)
}

// hangingProcess models a worker subprocess whose exit bookkeeping hangs
// past the join timeout (e.g. a stuck child reaper), forcing the supervisor
// down the SIGKILL path regardless of whether the worker's IPC protocol has
// already completed.
type hangingProcess struct {
	killed chan struct{}
}

func (p *hangingProcess) Wait() error {
	<-p.killed
	return nil
}
func (p *hangingProcess) Kill() error {
	close(p.killed)
	return nil
}
func (p *hangingProcess) ExitCode() int { return 137 }

type hangingSpawner struct{}

func (sp *hangingSpawner) Spawn(ctx types.TestContext, addr, sourceID string) (Process, error) {
	proc := &hangingProcess{killed: make(chan struct{})}
	go func() {
		client, err := worker.New(addr, sourceID, ctx.TestID(), ctx.ScheduleIndex)
		if err != nil {
			return
		}
		defer client.Close()
		_, _ = client.Run(&scriptedTestCase{shouldFail: false}, ctx.Ignore, ctx.InjectedArgs)
	}()
	return proc, nil
}

func TestSupervisorMarksTerminatedOnJoinTimeout(t *testing.T) {
	c := newTestCluster(1)
	sched := scheduler.New()
	sched.Put(types.TestContext{Module: "tests.suite", Function: "test_stuck", ExpectedClusterSpec: types.SimpleLinux(1, "")})

	session := newTestSession()
	session.FinishJoinTimeout = 50 * time.Millisecond

	sup, err := New(session, c, sched, &hangingSpawner{}, nil)
	require.NoError(t, err)

	results, err := sup.Run()
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	require.Len(t, results.ClientStatuses, 1)

	for _, status := range results.ClientStatuses {
		assert.Equal(t, types.ClientTerminated, status.Phase)
		assert.Equal(t, 137, status.ExitCode)
	}
}

func TestSupervisorReportsUnschedulableUpFront(t *testing.T) {
	c := newTestCluster(1)
	sched := scheduler.New()
	sched.Put(types.TestContext{Module: "tests.suite", Function: "test_too_big", ExpectedClusterSpec: types.SimpleLinux(10, "")})

	spawner := &inProcessSpawner{shouldFail: func(string) bool { return false }}
	sup, err := New(newTestSession(), c, sched, spawner, nil)
	require.NoError(t, err)

	results, err := sup.Run()
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	assert.Equal(t, types.StatusFail, results.Items[0].Status)
}
