package scheduler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/confluentinc/ducktape-core/pkg/log"
	"github.com/confluentinc/ducktape-core/pkg/metrics"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/rs/zerolog"
)

// entry pairs a TestContext with its precomputed expected node count, so the
// sort comparator never has to walk the cluster spec.
type entry struct {
	ctx           types.TestContext
	expectedNodes int
}

// Scheduler holds the ordered, on-demand feed of runnable TestContexts,
// maintained sorted descending by expected node count. Ties preserve the
// order contexts were Put, matching the loader's registration order.
type Scheduler struct {
	mu      sync.Mutex
	entries []entry
	logger  zerolog.Logger
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{logger: log.WithComponent("scheduler")}
}

// Put appends a context and re-sorts.
func (s *Scheduler) Put(ctx types.TestContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{ctx: ctx, expectedNodes: ctx.ExpectedNodes()})
	s.sortLocked()
	metrics.TestsScheduled.Set(float64(len(s.entries)))
}

// sortLocked performs a stable descending sort by expected node count so
// ties keep insertion order (largest-spec-first, stable).
func (s *Scheduler) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].expectedNodes > s.entries[j].expectedNodes
	})
}

// Len reports the number of contexts currently held.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Peek scans the sorted list and returns the first context whose expected
// node count fits within numAvailable, without removing it. found is false
// if entries exist but none currently fit. err is ErrEmpty if the scheduler
// holds no entries at all — a distinct condition from "nothing fits yet",
// since the former means the run loop should stop polling, the latter means
// it should wait for the next FINISHED and retry.
func (s *Scheduler) Peek(numAvailable int) (ctx types.TestContext, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peekLocked(numAvailable)
}

// Next peeks then removes the returned context.
func (s *Scheduler) Next(numAvailable int) (types.TestContext, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, found, err := s.peekLocked(numAvailable)
	if found {
		s.removeLocked(ctx)
	}
	return ctx, found, err
}

func (s *Scheduler) peekLocked(numAvailable int) (types.TestContext, bool, error) {
	if len(s.entries) == 0 {
		return types.TestContext{}, false, ErrEmpty
	}
	for _, e := range s.entries {
		if e.expectedNodes <= numAvailable {
			return e.ctx, true, nil
		}
	}
	return types.TestContext{}, false, nil
}

// Remove deletes the exact-identity match for ctx (by TestID + ScheduleIndex,
// since a deflake re-run shares a TestID with its original context but not a
// ScheduleIndex). No-op if absent.
func (s *Scheduler) Remove(ctx types.TestContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ctx)
	metrics.TestsScheduled.Set(float64(len(s.entries)))
}

func (s *Scheduler) removeLocked(ctx types.TestContext) {
	for i, e := range s.entries {
		if e.ctx.TestID() == ctx.TestID() && e.ctx.ScheduleIndex == ctx.ScheduleIndex {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// FilterUnschedulableTests removes and returns every context whose required
// spec can never fit within totalCapacity (the cluster's All() snapshot),
// i.e. tests that can never run regardless of how many FINISHED events
// arrive. Not defined in the original scheduler this package is modeled on;
// added here because the supervisor's run loop requires it to distinguish
// "cannot run yet" from "cannot ever run".
func (s *Scheduler) FilterUnschedulableTests(totalCapacity int) []types.TestContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unschedulable []types.TestContext
	var remaining []entry

	for _, e := range s.entries {
		if e.expectedNodes > totalCapacity {
			unschedulable = append(unschedulable, e.ctx)
			s.logger.Warn().
				Str("test_id", e.ctx.TestID()).
				Int("expected_nodes", e.expectedNodes).
				Int("total_capacity", totalCapacity).
				Msg("test is permanently unschedulable")
		} else {
			remaining = append(remaining, e)
		}
	}

	s.entries = remaining
	if len(unschedulable) > 0 {
		metrics.TestsUnschedulable.Add(float64(len(unschedulable)))
		metrics.TestsScheduled.Set(float64(len(s.entries)))
	}
	return unschedulable
}

// ErrEmpty is returned by operations that require at least one entry.
var ErrEmpty = fmt.Errorf("scheduler is empty")
