package health

import (
	"context"
	"time"
)

// CheckType identifies which probe mechanism a Checker uses to decide
// whether a cluster node is reachable.
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeExec CheckType = "exec"
)

// Result is the outcome of a single probe of one node.
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker probes a single node and reports whether it responded. cluster.Node
// Accounts wrap a Checker's Check behind Account.Probe; Supervisor never
// calls a Checker directly.
type Checker interface {
	Check(ctx context.Context) Result
	Type() CheckType
}

// Config tunes how a Checker's raw Result stream is turned into a hysteresis
// decision by Status.Update.
type Config struct {
	// Interval is the time between health checks.
	Interval time.Duration

	// Timeout is the maximum time to wait for a health check to complete.
	Timeout time.Duration

	// Retries is the number of consecutive failures before a node flips to
	// unhealthy.
	Retries int

	// StartPeriod is the grace period after a node starts monitoring during
	// which it is assumed healthy regardless of probe results, so a node
	// that is still booting isn't retired before it gets a chance to answer.
	StartPeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		Retries:     3,
		StartPeriod: 0,
	}
}

// Status tracks one node's accumulated health-check history: the raw Result
// stream smoothed into a single Healthy verdict via consecutive-failure/
// success counting, so one dropped probe doesn't flip a node out of the
// available pool.
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result

	// Healthy is the node's current verdict, used directly by Account.Probe.
	Healthy bool

	// StartedAt is when health monitoring started for this node.
	StartedAt time.Time
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		Healthy:   true, // Assume healthy until proven otherwise
		StartedAt: time.Now(),
	}
}

// Update updates the status based on a new health check result
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0

		// Mark as healthy after first success
		s.Healthy = true
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0

		// Mark as unhealthy after reaching retry threshold
		if s.ConsecutiveFailures >= config.Retries {
			s.Healthy = false
		}
	}
}

// InStartPeriod returns true if we're still in the startup grace period
func (s *Status) InStartPeriod(config Config) bool {
	if config.StartPeriod == 0 {
		return false
	}
	return time.Since(s.StartedAt) < config.StartPeriod
}
