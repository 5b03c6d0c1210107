// Package runner implements the Supervisor (TestRunner): the run loop that
// pulls schedulable contexts off the scheduler, pre-allocates subclusters,
// spawns one worker subprocess per running test, and routes IPC events
// until every test has a recorded result.
package runner

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/cluster"
	"github.com/confluentinc/ducktape-core/pkg/ipc"
	"github.com/confluentinc/ducktape-core/pkg/log"
	"github.com/confluentinc/ducktape-core/pkg/metrics"
	"github.com/confluentinc/ducktape-core/pkg/scheduler"
	"github.com/confluentinc/ducktape-core/pkg/storage"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/rs/zerolog"
)

// Process is a single worker subprocess handle.
type Process interface {
	Wait() error
	Kill() error
}

// Spawner launches one worker subprocess for a scheduled test. The process
// is expected to dial addr and identify itself with sourceID on its first
// IPC event.
type Spawner interface {
	Spawn(ctx types.TestContext, addr, sourceID string) (Process, error)
}

// testKey disambiguates a TestID across deflake re-runs.
type testKey struct {
	testID string
	index  int
}

type activeTest struct {
	ctx        types.TestContext
	subcluster cluster.Subcluster
	process    Process
	sourceID   string
	attempts   int
	anyFailed  bool
}

// Supervisor owns the Scheduler, the active-test map, and the Receiver for
// the duration of a run. It is single-threaded with respect to the run
// loop and cluster bookkeeping; all parallelism happens across workers.
type Supervisor struct {
	session   types.SessionContext
	cluster   cluster.Cluster
	scheduler *scheduler.Scheduler
	spawner   Spawner
	store     storage.Store
	receiver  *ipc.Receiver

	mu           sync.Mutex
	active       map[testKey]*activeTest
	clientStatus map[string]types.ClientStatus
	results      types.Results
	stopTesting  bool
	testCounter  int

	logger zerolog.Logger
}

// New builds a Supervisor and binds its Receiver immediately, so Addr() is
// valid as soon as New returns.
func New(session types.SessionContext, c cluster.Cluster, sched *scheduler.Scheduler, spawner Spawner, store storage.Store) (*Supervisor, error) {
	receiver, err := ipc.Listen(session.MinPort, session.MaxPort)
	if err != nil {
		return nil, fmt.Errorf("runner: bind receiver: %w", err)
	}

	return &Supervisor{
		session:   session,
		cluster:   c,
		scheduler: sched,
		spawner:   spawner,
		store:     store,
		receiver:  receiver,
		active:    make(map[testKey]*activeTest),
		clientStatus: make(map[string]types.ClientStatus),
		results:   types.Results{SessionID: session.SessionID, StartTime: time.Now()},
		logger:    log.WithComponent("supervisor").With().Str("session_id", session.SessionID).Logger(),
	}, nil
}

// Addr returns the IPC endpoint workers should dial.
func (s *Supervisor) Addr() string {
	return s.receiver.Addr()
}

// Run drains the scheduler to completion and returns the final Results.
// SIGTERM/SIGINT stop scheduling new tests; active tests are drained before
// returning. SIGTERM additionally kills every active worker immediately.
func (s *Supervisor) Run() (types.Results, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go s.watchSignals(sigCh)

	s.reportUnschedulableUpFront()

	for s.readyToTrigger() || s.expectClientRequests() {
		for s.readyToTrigger() {
			if !s.tryTriggerNext() {
				break
			}
		}

		if s.expectClientRequests() {
			if err := s.recvAndHandle(); err != nil {
				s.logger.Error().Err(err).Msg("fatal IPC error, terminating all workers")
				s.killAllActive()
				s.results.StopTime = time.Now()
				s.results.ClientStatuses = s.ClientStatuses()
				return s.results, err
			}
		}
	}

	s.results.StopTime = time.Now()
	s.results.ClientStatuses = s.ClientStatuses()
	return s.results, nil
}

// ClientStatuses returns a point-in-time snapshot of every worker's
// diagnostic status, keyed by SourceID.
func (s *Supervisor) ClientStatuses() map[string]types.ClientStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.ClientStatus, len(s.clientStatus))
	for k, v := range s.clientStatus {
		out[k] = v
	}
	return out
}

func (s *Supervisor) setClientStatus(sourceID, testID string, phase types.ClientPhase, exitCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientStatus[sourceID] = types.ClientStatus{
		SourceID:  sourceID,
		TestID:    testID,
		Phase:     phase,
		ExitCode:  exitCode,
		UpdatedAt: time.Now(),
	}
}

// clientPhaseForEvent maps the three ack-only IPC event types to the
// diagnostic phase they represent; it returns "" for any other EventType.
func clientPhaseForEvent(et types.EventType) types.ClientPhase {
	switch et {
	case types.EventSettingUp:
		return types.ClientSettingUp
	case types.EventRunning:
		return types.ClientRunning
	case types.EventTearingDown:
		return types.ClientTearingDown
	}
	return ""
}

func (s *Supervisor) watchSignals(sigCh <-chan os.Signal) {
	sig := <-sigCh
	s.mu.Lock()
	s.stopTesting = true
	s.logger.Warn().Str("signal", sig.String()).Msg("received signal, stopping scheduling")
	s.mu.Unlock()

	if sig == syscall.SIGTERM {
		s.killAllActive()
	}
}

func (s *Supervisor) killAllActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, at := range s.active {
		_ = at.process.Kill()
	}
}

func (s *Supervisor) reportUnschedulableUpFront() {
	total := s.cluster.All().Size()
	for _, ctx := range s.scheduler.FilterUnschedulableTests(total) {
		s.recordResult(types.Result{
			TestID: ctx.TestID(), ScheduleIndex: ctx.ScheduleIndex,
			Status:    types.StatusFail,
			Summary:   fmt.Sprintf("requires %d nodes, cluster capacity is %d", ctx.ExpectedNodes(), total),
			StartTime: time.Now(), StopTime: time.Now(),
		})
	}
}

func (s *Supervisor) readyToTrigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopTesting || len(s.active) >= s.session.MaxParallel {
		return false
	}
	_, found, err := s.scheduler.Peek(s.cluster.NumAvailableNodes())
	return err == nil && found
}

func (s *Supervisor) expectClientRequests() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// tryTriggerNext attempts to preallocate and spawn the next peekable
// context. Returns false if nothing more can be triggered this pass
// (either insufficient resources for the moment, or nothing left at all).
func (s *Supervisor) tryTriggerNext() bool {
	ctx, found, err := s.scheduler.Peek(s.cluster.NumAvailableNodes())
	if err != nil || !found {
		return false
	}

	sub, err := s.cluster.Alloc(ctx.ExpectedClusterSpec)
	if err != nil {
		if cluster.IsPermanent(err) {
			total := s.cluster.All().Size()
			for _, dropped := range s.scheduler.FilterUnschedulableTests(total) {
				s.recordResult(types.Result{
					TestID: dropped.TestID(), ScheduleIndex: dropped.ScheduleIndex,
					Status: types.StatusFail, Summary: err.Error(),
					StartTime: time.Now(), StopTime: time.Now(),
				})
			}
		}
		// Recoverable (InsufficientHealthyNodes) or momentarily out of
		// available nodes: leave ctx in the scheduler and retry after the
		// next FINISHED.
		return false
	}

	s.scheduler.Remove(ctx)
	s.spawnWorker(ctx, sub)
	return true
}

func (s *Supervisor) spawnWorker(ctx types.TestContext, sub cluster.Subcluster) {
	s.mu.Lock()
	s.testCounter++
	ctx.ScheduleIndex = s.testCounter
	key := testKey{testID: ctx.TestID(), index: ctx.ScheduleIndex}
	sourceID := fmt.Sprintf("%s#%d", ctx.TestID(), ctx.ScheduleIndex)
	s.mu.Unlock()

	process, err := s.spawner.Spawn(ctx, s.receiver.Addr(), sourceID)
	if err != nil {
		s.logger.Error().Err(err).Str("test_id", ctx.TestID()).Msg("failed to spawn worker")
		_ = sub.ReleaseAll()
		s.recordResult(types.Result{
			TestID: ctx.TestID(), ScheduleIndex: ctx.ScheduleIndex,
			Status: types.StatusFail, Summary: fmt.Sprintf("failed to spawn worker: %v", err),
			StartTime: time.Now(), StopTime: time.Now(),
		})
		return
	}

	s.mu.Lock()
	s.active[key] = &activeTest{ctx: ctx, subcluster: sub, process: process, sourceID: sourceID}
	s.mu.Unlock()
	s.setClientStatus(sourceID, ctx.TestID(), types.ClientSettingUp, 0)
	metrics.TestsRunning.Inc()
	s.logger.Info().Str("test_id", ctx.TestID()).Int("schedule_index", ctx.ScheduleIndex).Msg("spawned worker")
}

func (s *Supervisor) recvAndHandle() error {
	event, err := s.receiver.Recv(s.session.TestRunnerTimeout)
	if err != nil {
		return err
	}
	s.handle(event)
	return nil
}

func (s *Supervisor) handle(event types.Event) {
	switch event.EventType {
	case types.EventReady:
		s.handleReady(event)
	case types.EventSettingUp, types.EventRunning, types.EventTearingDown:
		if phase := clientPhaseForEvent(event.EventType); phase != "" {
			s.setClientStatus(event.SourceID, event.TestID, phase, 0)
		}
		_ = s.receiver.Send(types.Reply{Ack: true, SourceID: event.SourceID, EventID: event.EventID})
	case types.EventLog:
		s.logger.Info().Str("source", event.SourceID).Interface("payload", event.Payload).Msg("worker log")
		_ = s.receiver.Send(types.Reply{Ack: true, SourceID: event.SourceID, EventID: event.EventID})
	case types.EventFinished:
		s.handleFinished(event)
	}
}

func (s *Supervisor) handleReady(event types.Event) {
	s.mu.Lock()
	var at *activeTest
	for _, candidate := range s.active {
		if candidate.sourceID == event.SourceID {
			at = candidate
			break
		}
	}
	s.mu.Unlock()

	reply := types.Reply{Ack: true, SourceID: event.SourceID, EventID: event.EventID}
	if at != nil {
		reply.Payload = map[string]any{
			"session": s.session,
			"subcluster": at.subcluster.Nodes(),
		}
	}
	_ = s.receiver.Send(reply)
}

func (s *Supervisor) handleFinished(event types.Event) {
	_ = s.receiver.Send(types.Reply{Ack: true, SourceID: event.SourceID, EventID: event.EventID})

	s.mu.Lock()
	var key testKey
	var at *activeTest
	for k, candidate := range s.active {
		if candidate.sourceID == event.SourceID {
			key, at = k, candidate
			break
		}
	}
	s.mu.Unlock()

	if at == nil {
		s.logger.Warn().Str("source", event.SourceID).Msg("FINISHED from unknown worker")
		return
	}

	result := decodeResult(event.Payload)
	// A re-run gets a fresh activeTest, so the attempt count is recovered
	// from clientStatus: every spawned attempt of this test has its own
	// entry there, and a test is only re-run after a FAIL, so any attempt
	// past the first follows a failure.
	s.mu.Lock()
	for _, st := range s.clientStatus {
		if st.TestID == at.ctx.TestID() {
			at.attempts++
		}
	}
	s.mu.Unlock()
	at.anyFailed = at.attempts > 1

	if result.Status == types.StatusFail {
		at.anyFailed = true
		if s.session.ExitFirst {
			s.mu.Lock()
			s.stopTesting = true
			s.mu.Unlock()
		}

		if at.attempts < s.session.DeflakeNum {
			s.joinAndMarkStatus(at)
			s.releaseActive(key, at)
			s.scheduler.Put(at.ctx)
			s.logger.Info().Str("test_id", at.ctx.TestID()).Int("attempt", at.attempts).Msg("deflake retry")
			metrics.DeflakeRetriesTotal.Inc()
			return
		}
	}

	if result.Status == types.StatusPass && at.anyFailed {
		result.Status = types.StatusFlaky
	}

	s.joinAndMarkStatus(at)
	s.releaseActive(key, at)
	s.recordResult(result)
	s.persistSnapshot()
}

// exitCoder is implemented by Process handles that can report the exit code
// of the process they wrap; Process itself stays minimal since not every
// Spawner backs a real OS process (e.g. the in-process test spawner).
type exitCoder interface {
	ExitCode() int
}

// joinAndMarkStatus waits for at's process and records the resulting
// diagnostic phase: FINISHED on a normal exit, TERMINATED if the join
// timeout fired and the process had to be SIGKILL'd.
func (s *Supervisor) joinAndMarkStatus(at *activeTest) {
	terminated, exitCode := s.joinWorker(at)
	phase := types.ClientFinished
	if terminated {
		phase = types.ClientTerminated
	}
	s.setClientStatus(at.sourceID, at.ctx.TestID(), phase, exitCode)
}

func (s *Supervisor) joinWorker(at *activeTest) (terminated bool, exitCode int) {
	done := make(chan error, 1)
	go func() { done <- at.process.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn().Err(err).Str("test_id", at.ctx.TestID()).Msg("worker process exited with error")
		}
	case <-time.After(s.session.FinishJoinTimeout):
		s.logger.Warn().Str("test_id", at.ctx.TestID()).Msg("worker join timeout exceeded, sending SIGKILL")
		metrics.WorkerTerminationsTotal.Inc()
		_ = at.process.Kill()
		<-done
		terminated = true
	}

	if ec, ok := at.process.(exitCoder); ok {
		exitCode = ec.ExitCode()
	}
	return terminated, exitCode
}

func (s *Supervisor) releaseActive(key testKey, at *activeTest) {
	if err := at.subcluster.ReleaseAll(); err != nil {
		s.logger.Error().Err(err).Str("test_id", at.ctx.TestID()).Msg("failed to release subcluster")
	}
	s.mu.Lock()
	delete(s.active, key)
	s.mu.Unlock()
	metrics.TestsRunning.Dec()
}

func (s *Supervisor) recordResult(result types.Result) {
	s.mu.Lock()
	s.results.Append(result)
	s.mu.Unlock()
	metrics.TestsCompletedTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.TestDuration.Observe(result.RunTime().Seconds())

	if s.store != nil {
		if err := s.store.SaveResult(&result); err != nil {
			s.logger.Error().Err(err).Str("test_id", result.TestID).Msg("failed to persist result")
		}
	}
}

func (s *Supervisor) persistSnapshot() {
	if s.store == nil {
		return
	}
	s.logger.Debug().Int("completed", len(s.results.Items)).Msg("partial report snapshot")
}

func decodeResult(payload map[string]any) types.Result {
	var result types.Result
	if payload == nil {
		return result
	}
	if v, ok := payload["TestID"].(string); ok {
		result.TestID = v
	}
	if v, ok := payload["Status"].(string); ok {
		result.Status = types.TestStatus(v)
	}
	if v, ok := payload["Summary"].(string); ok {
		result.Summary = v
	}
	if v, ok := payload["Traceback"].(string); ok {
		result.Traceback = v
	}
	if v, ok := payload["Data"].(map[string]any); ok {
		result.Data = v
	}
	if v, ok := payload["ScheduleIndex"].(float64); ok {
		result.ScheduleIndex = int(v)
	}
	result.StartTime = parseTime(payload["StartTime"])
	result.StopTime = parseTime(payload["StopTime"])
	return result
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
