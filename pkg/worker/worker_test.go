package worker

import (
	"fmt"
	"testing"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/ipc"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTestCase struct {
	minNodes      int
	runErr        error
	setupErr      error
	teardownErr   error
	collectedAll  bool
	ranWithArgs   map[string]any
	data          map[string]any
}

func (f *fakeTestCase) MinClusterSpec() types.ClusterSpec { return types.SimpleLinux(f.minNodes, "") }
func (f *fakeTestCase) Setup(nodes []types.Node, args map[string]any) error { return f.setupErr }
func (f *fakeTestCase) RunTest(args map[string]any) (map[string]any, error) {
	f.ranWithArgs = args
	return f.data, f.runErr
}
func (f *fakeTestCase) Teardown() error { return f.teardownErr }
func (f *fakeTestCase) StopServices() error { return nil }
func (f *fakeTestCase) CollectLogs(all bool) error {
	f.collectedAll = all
	return nil
}
func (f *fakeTestCase) CleanServices() error { return nil }

func startReceiverForTest(t *testing.T, basePort int) *ipc.Receiver {
	t.Helper()
	receiver, err := ipc.Listen(basePort, basePort+50)
	require.NoError(t, err)
	t.Cleanup(func() { receiver.Close() })
	return receiver
}

// driveSupervisorSide answers one READY with subcluster nodes, acks
// RUNNING/TEARING_DOWN, and returns the FINISHED payload it observed.
func driveSupervisorSide(t *testing.T, receiver *ipc.Receiver, nodes []types.Node) <-chan map[string]any {
	t.Helper()
	finished := make(chan map[string]any, 1)

	go func() {
		for {
			event, err := receiver.Recv(5 * time.Second)
			if err != nil {
				return
			}

			reply := types.Reply{Ack: true, SourceID: event.SourceID, EventID: event.EventID}
			if event.EventType == types.EventReady {
				encoded, _ := encodeNodesForTest(nodes)
				reply.Payload = map[string]any{"subcluster": encoded}
			}
			_ = receiver.Send(reply)

			if event.EventType == types.EventFinished {
				finished <- event.Payload
				return
			}
		}
	}()

	return finished
}

func encodeNodesForTest(nodes []types.Node) (any, error) {
	return nodes, nil
}

func TestRunPassResult(t *testing.T) {
	receiver := startReceiverForTest(t, 21000)
	nodes := []types.Node{{ID: "n1", OperatingSystem: "linux"}}
	finished := driveSupervisorSide(t, receiver, nodes)

	client, err := New(receiver.Addr(), "worker-pass", "tests.suite.test_pass", 0)
	require.NoError(t, err)
	defer client.Close()

	tc := &fakeTestCase{minNodes: 1, data: map[string]any{"value": 3.14}}
	result, err := client.Run(tc, false, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPass, result.Status)

	select {
	case payload := <-finished:
		assert.Equal(t, "tests.suite.test_pass", payload["TestID"])
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor side never observed FINISHED")
	}
}

func TestRunFailResultFromTestError(t *testing.T) {
	receiver := startReceiverForTest(t, 21100)
	nodes := []types.Node{{ID: "n1", OperatingSystem: "linux"}}
	driveSupervisorSide(t, receiver, nodes)

	client, err := New(receiver.Addr(), "worker-fail", "tests.suite.test_fail", 0)
	require.NoError(t, err)
	defer client.Close()

	tc := &fakeTestCase{minNodes: 1, runErr: fmt.Errorf("boom")}
	result, err := client.Run(tc, false, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, result.Status)
	assert.Contains(t, result.Summary, "boom")
}

func TestRunIgnoreShortCircuits(t *testing.T) {
	receiver := startReceiverForTest(t, 21200)
	driveSupervisorSide(t, receiver, nil)

	client, err := New(receiver.Addr(), "worker-ignore", "tests.suite.test_ignored", 0)
	require.NoError(t, err)
	defer client.Close()

	tc := &fakeTestCase{minNodes: 0}
	result, err := client.Run(tc, true, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusIgnore, result.Status)
	assert.Equal(t, result.StartTime, result.StopTime)
}

func TestRunFailsWhenBelowMinClusterSpec(t *testing.T) {
	receiver := startReceiverForTest(t, 21300)
	nodes := []types.Node{{ID: "n1", OperatingSystem: "linux"}}
	driveSupervisorSide(t, receiver, nodes)

	client, err := New(receiver.Addr(), "worker-undersized", "tests.suite.test_needs_more", 0)
	require.NoError(t, err)
	defer client.Close()

	tc := &fakeTestCase{minNodes: 5}
	result, err := client.Run(tc, false, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, result.Status)
	assert.Contains(t, result.Summary, "need at least 5")
}

func TestTeardownStepIsolation(t *testing.T) {
	receiver := startReceiverForTest(t, 21400)
	nodes := []types.Node{{ID: "n1", OperatingSystem: "linux"}}
	driveSupervisorSide(t, receiver, nodes)

	client, err := New(receiver.Addr(), "worker-teardown", "tests.suite.test_teardown_fails", 0)
	require.NoError(t, err)
	defer client.Close()

	tc := &fakeTestCase{minNodes: 1, teardownErr: fmt.Errorf("teardown exploded")}
	result, err := client.Run(tc, false, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPass, result.Status)
	assert.Contains(t, result.Summary, "teardown exploded")
	assert.True(t, tc.collectedAll == false)
}
