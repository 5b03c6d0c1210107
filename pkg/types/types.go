package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// NodeSpec is a declarative request for nodes of a given operating system
// and, optionally, a node type label.
type NodeSpec struct {
	OperatingSystem string
	NodeType        string // empty means "any type"
	NumNodes        int
}

// Matches reports whether a candidate node satisfies this spec's OS/type rule:
// OS must equal exactly; if NodeType is unset, any type matches, else it must
// equal exactly.
func (s NodeSpec) Matches(os, nodeType string) bool {
	if s.OperatingSystem != os {
		return false
	}
	if s.NodeType == "" {
		return true
	}
	return s.NodeType == nodeType
}

// sortKey returns a deterministic key used only to canonically order
// ClusterSpec entries; it is not part of any equality contract by itself.
func (s NodeSpec) sortKey() string {
	return s.OperatingSystem + "\x00" + s.NodeType
}

// ClusterSpec is an ordered multiset of NodeSpec: a declarative request for N
// nodes of each (OS, optional type).
type ClusterSpec struct {
	Specs []NodeSpec
}

// NewClusterSpec builds a ClusterSpec from the given specs, in the given order.
func NewClusterSpec(specs ...NodeSpec) ClusterSpec {
	return ClusterSpec{Specs: append([]NodeSpec(nil), specs...)}
}

// SimpleLinux returns a ClusterSpec requesting n plain linux nodes, optionally
// restricted to a node type.
func SimpleLinux(n int, nodeType string) ClusterSpec {
	return NewClusterSpec(NodeSpec{OperatingSystem: "linux", NodeType: nodeType, NumNodes: n})
}

// Size returns the total node count requested across all specs.
func (c ClusterSpec) Size() int {
	total := 0
	for _, s := range c.Specs {
		total += s.NumNodes
	}
	return total
}

// Clone returns a deep copy.
func (c ClusterSpec) Clone() ClusterSpec {
	return NewClusterSpec(c.Specs...)
}

// Add returns the concatenation of two specs (a new ClusterSpec requesting
// both sets of nodes).
func (c ClusterSpec) Add(other ClusterSpec) ClusterSpec {
	out := make([]NodeSpec, 0, len(c.Specs)+len(other.Specs))
	out = append(out, c.Specs...)
	out = append(out, other.Specs...)
	return ClusterSpec{Specs: out}
}

// FromNodes builds a ClusterSpec counting the given nodes by (OS, node type).
func FromNodes(nodes []Node) ClusterSpec {
	counts := map[string]*NodeSpec{}
	order := []string{}
	for _, n := range nodes {
		key := n.OperatingSystem + "\x00" + n.NodeType
		if _, ok := counts[key]; !ok {
			counts[key] = &NodeSpec{OperatingSystem: n.OperatingSystem, NodeType: n.NodeType}
			order = append(order, key)
		}
		counts[key].NumNodes++
	}
	specs := make([]NodeSpec, 0, len(order))
	for _, key := range order {
		specs = append(specs, *counts[key])
	}
	return ClusterSpec{Specs: specs}
}

// String returns the canonical form: specs sorted by (OS, node type), encoded
// as a JSON array of {os, node_type?, num_nodes} objects. Two specs with the
// same multiset of requests produce identical strings regardless of input
// order, matching the round-trip property that canonical form is stable
// under permutation.
func (c ClusterSpec) String() string {
	sorted := append([]NodeSpec(nil), c.Specs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].sortKey() < sorted[j].sortKey()
	})

	parts := make([]string, 0, len(sorted))
	for _, s := range sorted {
		var b strings.Builder
		b.WriteByte('{')
		fmt.Fprintf(&b, `"os":%q`, s.OperatingSystem)
		if s.NodeType != "" {
			fmt.Fprintf(&b, `,"node_type":%q`, s.NodeType)
		}
		fmt.Fprintf(&b, `,"num_nodes":%d`, s.NumNodes)
		b.WriteByte('}')
		parts = append(parts, b.String())
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Account is a node's opaque capability handle: hostname plus a health
// predicate. Available defaults to true (always healthy) when no probe is
// wired in, matching a purely local node's behavior. Probe is not encoded
// to JSON, so a Node can travel in an IPC payload.
type Account struct {
	Hostname        string
	OperatingSystem string
	Probe           func() bool `json:"-"`
}

// Available returns the account's current health, defaulting to healthy if
// no probe was configured.
func (a Account) Available() bool {
	if a.Probe == nil {
		return true
	}
	return a.Probe()
}

// Node is an opaque host handle carrying an Account and a node-type label
// used for NodeSpec matching.
type Node struct {
	ID              string
	OperatingSystem string
	NodeType        string
	Account         Account
}

// Available reports the node's current health via its account.
func (n Node) Available() bool {
	return n.Account.Available()
}

// TestStatus is the outcome of a single test run.
type TestStatus string

const (
	StatusPass   TestStatus = "pass"
	StatusFail   TestStatus = "fail"
	StatusFlaky  TestStatus = "flaky"
	StatusIgnore TestStatus = "ignore"
)

// MarkKind tags the variant held by a Mark.
type MarkKind string

const (
	MarkParametrize        MarkKind = "parametrize"
	MarkMatrix             MarkKind = "matrix"
	MarkDefaults           MarkKind = "defaults"
	MarkIgnore             MarkKind = "ignore"
	MarkEnv                MarkKind = "env"
	MarkClusterUseMetadata MarkKind = "cluster_use_metadata"
)

// Mark is a tagged variant over the six decorator kinds spec.md §3 defines.
// Only the fields relevant to Kind are populated; Apply (pkg/mark) dispatches
// on Kind.
type Mark struct {
	Kind MarkKind

	// Parametrize: single arg set.
	Args map[string]any

	// Matrix / Defaults: axis name -> candidate values.
	Axes map[string][]any

	// Ignore: optional matching arg set; nil means "ignore all".
	IgnoreArgs map[string]any

	// Env: variable name -> required value.
	EnvVars map[string]string

	// ClusterUseMetadata: key/value metadata to attach.
	Metadata map[string]string
}

// TestContext is the fully-resolved identity of one test invocation.
type TestContext struct {
	SessionID   string
	Module      string
	Class       string
	Function    string
	File        string
	InjectedArgs map[string]any
	Ignore      bool
	ClusterUseMetadata map[string]string
	ExpectedClusterSpec ClusterSpec

	// ScheduleIndex is assigned by the supervisor each time it spawns a worker
	// for the context; it disambiguates identical test_ids across deflake re-runs.
	ScheduleIndex int
}

// ExpectedNodes returns the total node count this context will request on
// allocation.
func (tc TestContext) ExpectedNodes() int {
	return tc.ExpectedClusterSpec.Size()
}

// TestID derives the canonical identity: <module>.<class>.<function>[@<sorted-json(args)>].
func (tc TestContext) TestID() string {
	base := tc.Module
	if tc.Class != "" {
		base += "." + tc.Class
	}
	base += "." + tc.Function

	if len(tc.InjectedArgs) == 0 {
		return base
	}
	return fmt.Sprintf("%s@%s", base, canonicalArgsJSON(tc.InjectedArgs))
}

// ResultsDir derives the per-test results directory from the session results
// root, test id, and schedule index.
func (tc TestContext) ResultsDir(sessionResultsDir string) string {
	return fmt.Sprintf("%s/%s/%d", sessionResultsDir, tc.TestID(), tc.ScheduleIndex)
}

func canonicalArgsJSON(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		v, _ := json.Marshal(args[k])
		fmt.Fprintf(&b, "%q:%s", k, v)
	}
	b.WriteByte('}')
	return b.String()
}

// Result is the outcome of a single scheduled test invocation.
type Result struct {
	SessionID     string
	TestID        string
	Module        string
	Class         string
	Function      string
	InjectedArgs  map[string]any
	ScheduleIndex int
	Status        TestStatus
	Summary       string
	Traceback     string
	Data          map[string]any
	StartTime     time.Time
	StopTime      time.Time
}

// WithTraceback returns r with Traceback set, for fluent construction at the
// call site (e.g. Result{...}.WithTraceback(tb)).
func (r Result) WithTraceback(traceback string) Result {
	r.Traceback = traceback
	return r
}

// RunTime returns StopTime-StartTime, or elapsed-since-start if still running.
func (r Result) RunTime() time.Duration {
	if r.StartTime.IsZero() {
		return -1
	}
	if r.StopTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.StopTime.Sub(r.StartTime)
}

// Results aggregates Result values from an entire run, in FINISHED-arrival order.
type Results struct {
	SessionID string
	Items     []Result
	StartTime time.Time
	StopTime  time.Time

	// ClientStatuses is the supervisor's final per-worker diagnostic snapshot,
	// keyed by SourceID. It tracks connection lifecycle phase independently of
	// the pass/fail Result a worker eventually produces, so a worker that was
	// killed for exceeding its join timeout still shows up as TERMINATED here
	// even when a Result for the same test also exists.
	ClientStatuses map[string]ClientStatus
}

func (rs *Results) Append(r Result) {
	rs.Items = append(rs.Items, r)
}

func (rs Results) NumPassed() int  { return rs.count(StatusPass) }
func (rs Results) NumFailed() int  { return rs.count(StatusFail) }
func (rs Results) NumFlaky() int   { return rs.count(StatusFlaky) }
func (rs Results) NumIgnored() int { return rs.count(StatusIgnore) }

func (rs Results) count(status TestStatus) int {
	n := 0
	for _, r := range rs.Items {
		if r.Status == status {
			n++
		}
	}
	return n
}

// GetAggregateSuccess reports whether no result has status FAIL.
func (rs Results) GetAggregateSuccess() bool {
	for _, r := range rs.Items {
		if r.Status == StatusFail {
			return false
		}
	}
	return true
}

// RunTime returns StopTime-StartTime, or elapsed-since-start if still running.
func (rs Results) RunTime() time.Duration {
	if rs.StartTime.IsZero() {
		return -1
	}
	if rs.StopTime.IsZero() {
		return time.Since(rs.StartTime)
	}
	return rs.StopTime.Sub(rs.StartTime)
}

// EventType enumerates the IPC lifecycle events a worker emits.
type EventType string

const (
	EventReady       EventType = "READY"
	EventSettingUp   EventType = "SETTING_UP"
	EventRunning     EventType = "RUNNING"
	EventTearingDown EventType = "TEARING_DOWN"
	EventLog         EventType = "LOG"
	EventFinished    EventType = "FINISHED"
)

// Event is the opaque IPC envelope exchanged between worker and supervisor.
type Event struct {
	SourceID  string
	TestID    string
	TestIndex int
	EventID   int
	EventType EventType
	EventTime time.Time
	Payload   map[string]any
}

// ClientPhase is the diagnostic lifecycle phase of one worker connection,
// as tracked by the supervisor. It mirrors the event stream a worker emits
// (SETTING_UP/RUNNING/TEARING_DOWN/FINISHED) plus one phase no event reports
// directly: TERMINATED, set only when the supervisor SIGKILLs a worker that
// exceeded its join timeout.
type ClientPhase string

const (
	ClientSettingUp   ClientPhase = "SETTING_UP"
	ClientRunning     ClientPhase = "RUNNING"
	ClientTearingDown ClientPhase = "TEARING_DOWN"
	ClientFinished    ClientPhase = "FINISHED"
	ClientTerminated  ClientPhase = "TERMINATED"
)

// ClientStatus is the supervisor's per-worker diagnostic record: a live view
// of what each worker subprocess is doing, updated far more often than the
// Result it eventually produces (and sometimes never followed by one, as on
// a join-timeout kill).
type ClientStatus struct {
	SourceID  string
	TestID    string
	Phase     ClientPhase
	ExitCode  int
	UpdatedAt time.Time
}

// Reply is the supervisor's synchronous acknowledgment to an Event.
type Reply struct {
	Ack       bool
	SourceID  string
	EventID   int
	Payload   map[string]any
}

// SessionContext holds the global, read-mostly configuration and identity
// shared by the supervisor and every worker. Workers receive a serialized
// copy in the READY reply rather than sharing this object across processes,
// per the explicit-Session-object redesign.
type SessionContext struct {
	SessionID               string
	ResultsDir              string
	Debug                   bool
	Compress                bool
	ExitFirst               bool
	NoTeardown              bool
	MaxParallel             int
	DeflakeNum              int
	FinishJoinTimeout       time.Duration
	TestRunnerTimeout       time.Duration
	FailBadClusterUtilization bool
	MinPort                 int
	MaxPort                 int
	Globals                 map[string]string
}
