// Package worker implements the RunnerClient: the single-test lifecycle
// that runs inside a worker subprocess spawned by the supervisor.
package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/ipc"
	"github.com/confluentinc/ducktape-core/pkg/log"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/rs/zerolog"
)

// maxTracebackFrames bounds how many stack frames a FAIL result's traceback
// carries, matching the supervisor's truncated-traceback contract.
const maxTracebackFrames = 16

// TestCase is implemented by generated or hand-written test bodies. Setup
// and RunTest run back to back; the four teardown hooks always run
// regardless of outcome, each isolated from the others' failures.
type TestCase interface {
	MinClusterSpec() types.ClusterSpec
	Setup(nodes []types.Node, injectedArgs map[string]any) error
	RunTest(injectedArgs map[string]any) (map[string]any, error)
	Teardown() error
	StopServices() error
	CollectLogs(collectAll bool) error
	CleanServices() error
}

// RunnerClient drives one TestContext's lifecycle inside a child process: it
// owns a single Sender connection to the supervisor's Receiver and nothing
// else — no state is shared with other workers.
type RunnerClient struct {
	sender    *ipc.Sender
	sourceID  string
	testID    string
	testIndex int
	logger    zerolog.Logger
}

// New connects a RunnerClient to the supervisor's IPC endpoint.
func New(supervisorAddr, sourceID, testID string, testIndex int) (*RunnerClient, error) {
	sender, err := ipc.Dial(supervisorAddr, sourceID)
	if err != nil {
		return nil, fmt.Errorf("worker: connect to supervisor: %w", err)
	}
	return &RunnerClient{
		sender:    sender,
		sourceID:  sourceID,
		testID:    testID,
		testIndex: testIndex,
		logger:    log.WithComponent("worker").With().Str("test_id", testID).Logger(),
	}, nil
}

// Close releases the IPC connection.
func (c *RunnerClient) Close() error {
	return c.sender.Close()
}

// Run executes the full lifecycle: READY handshake, an early exit for
// ignored tests, RUNNING, setup/run/teardown, and a final FINISHED report.
// It returns the Result it reported, or an error only when the IPC
// transport itself failed (in which case the process must exit non-zero so
// the supervisor's join-timeout reaps it).
func (c *RunnerClient) Run(tc TestCase, ignore bool, injectedArgs map[string]any) (types.Result, error) {
	ready, err := c.sender.Send(types.Event{
		TestID:    c.testID,
		TestIndex: c.testIndex,
		EventType: types.EventReady,
	})
	if err != nil {
		return types.Result{}, fmt.Errorf("worker: READY handshake: %w", err)
	}

	subclusterNodes := decodeNodes(ready.Payload["subcluster"])

	start := time.Now()

	if ignore {
		result := types.Result{
			TestID: c.testID, ScheduleIndex: c.testIndex,
			Status: types.StatusIgnore, StartTime: start, StopTime: start,
		}
		return result, c.finish(result)
	}

	if _, err := c.sender.Send(types.Event{
		TestID: c.testID, TestIndex: c.testIndex, EventType: types.EventRunning,
		Payload: map[string]any{"pid": os.Getpid()},
	}); err != nil {
		return types.Result{}, fmt.Errorf("worker: RUNNING event: %w", err)
	}

	result := c.runAndTeardown(tc, subclusterNodes, injectedArgs, start)
	return result, c.finish(result)
}

func (c *RunnerClient) runAndTeardown(tc TestCase, nodes []types.Node, injectedArgs map[string]any, start time.Time) types.Result {
	min := tc.MinClusterSpec()
	if len(nodes) < min.Size() {
		return c.failResult(start, fmt.Sprintf("cluster has %d nodes, need at least %d", len(nodes), min.Size()), "")
	}

	data, status, summary, traceback := c.runBody(tc, nodes, injectedArgs)

	if _, err := c.sender.Send(types.Event{
		TestID: c.testID, TestIndex: c.testIndex, EventType: types.EventTearingDown,
	}); err != nil {
		c.logger.Warn().Err(err).Msg("failed to send TEARING_DOWN event")
	}

	teardownSummary := c.teardown(tc, status == types.StatusFail)
	if teardownSummary != "" {
		if summary != "" {
			summary += "; "
		}
		summary += teardownSummary
	}

	return types.Result{
		TestID: c.testID, ScheduleIndex: c.testIndex,
		Status: status, Summary: summary, Data: data,
		StartTime: start, StopTime: time.Now(),
	}.WithTraceback(traceback)
}

// runBody calls Setup then RunTest, recovering from panics and translating
// them into a FAIL with a truncated traceback — the body runs in-process
// (not a separate goroutine) so a deliberate os.Exit in test code still
// takes down the whole worker, matching a crashed subprocess.
func (c *RunnerClient) runBody(tc TestCase, nodes []types.Node, injectedArgs map[string]any) (data map[string]any, status types.TestStatus, summary string, traceback string) {
	defer func() {
		if r := recover(); r != nil {
			status = types.StatusFail
			summary = fmt.Sprintf("panic: %v", r)
			traceback = captureTraceback()
		}
	}()

	if err := tc.Setup(nodes, injectedArgs); err != nil {
		return nil, types.StatusFail, fmt.Sprintf("setup failed: %v", err), ""
	}

	result, err := tc.RunTest(injectedArgs)
	if err != nil {
		return nil, types.StatusFail, err.Error(), ""
	}
	return result, types.StatusPass, "", ""
}

// teardown runs the four teardown steps, each isolated: a failure in one is
// logged and folded into the returned summary, but never skips the rest.
func (c *RunnerClient) teardown(tc TestCase, collectAllLogs bool) string {
	var problems []string

	steps := []struct {
		name string
		run  func() error
	}{
		{"teardown", tc.Teardown},
		{"stop_services", tc.StopServices},
		{"collect_logs", func() error { return tc.CollectLogs(collectAllLogs) }},
		{"clean_services", tc.CleanServices},
	}

	for _, step := range steps {
		if err := c.runIsolated(step.run); err != nil {
			c.logger.Warn().Err(err).Str("step", step.name).Msg("teardown step failed")
			problems = append(problems, fmt.Sprintf("%s: %v", step.name, err))
		}
	}

	if len(problems) == 0 {
		return ""
	}
	summary := "teardown errors: "
	for i, p := range problems {
		if i > 0 {
			summary += "; "
		}
		summary += p
	}
	return summary
}

func (c *RunnerClient) runIsolated(step func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step()
}

func (c *RunnerClient) failResult(start time.Time, summary, traceback string) types.Result {
	return types.Result{
		TestID: c.testID, ScheduleIndex: c.testIndex,
		Status: types.StatusFail, Summary: summary,
		StartTime: start, StopTime: time.Now(),
	}.WithTraceback(traceback)
}

func (c *RunnerClient) finish(result types.Result) error {
	payload, err := resultPayload(result)
	if err != nil {
		return fmt.Errorf("worker: encode result: %w", err)
	}
	_, err = c.sender.Send(types.Event{
		TestID: c.testID, TestIndex: c.testIndex, EventType: types.EventFinished,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("worker: FINISHED event: %w", err)
	}
	return nil
}

func resultPayload(result types.Result) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func captureTraceback() string {
	pcs := make([]uintptr, maxTracebackFrames)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	out := ""
	for {
		frame, more := frames.Next()
		out += fmt.Sprintf("%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return out
}

func decodeNodes(raw any) []types.Node {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var nodes []types.Node
	if err := json.Unmarshal(encoded, &nodes); err != nil {
		return nil
	}
	return nodes
}
