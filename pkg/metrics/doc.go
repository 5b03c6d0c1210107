/*
Package metrics provides Prometheus metrics collection and exposition for ducktape-core.

The metrics package defines and registers all ducktape-core metrics using the
Prometheus client library, providing observability into cluster allocation,
scheduler backlog, supervisor throughput, and IPC health. Metrics are exposed
via HTTP endpoint for scraping by Prometheus servers.

# Architecture

ducktape-core's metrics system follows Prometheus best practices with
instrumentation across the allocation, scheduling, and run-loop components:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (nodes available)    │          │
	│  │  Counter: Monotonic increases (retries)     │          │
	│  │  Histogram: Distributions (alloc latency)   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Cluster: available/in-use nodes, max_used  │          │
	│  │  Scheduler: scheduled/unschedulable counts  │          │
	│  │  Supervisor: running, completed, duration   │          │
	│  │  IPC: retries, events by type               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: metrics.Handler()               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Server                   │          │
	│  │  - Scrapes /metrics every 15s               │          │
	│  │  - Stores time series data                  │          │
	│  │  - Provides PromQL query interface          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Automatic collection of Go runtime metrics
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: nodes available, nodes in use, max_used high-water mark
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: alloc failures total, deflake retries total, IPC retries total
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets for latency percentiles (p50, p95, p99)
  - Examples: alloc duration, test duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Cluster Metrics:

ducktape_nodes_available:
  - Type: Gauge
  - Description: Number of nodes currently available for allocation
  - Example: ducktape_nodes_available 7

ducktape_nodes_in_use:
  - Type: Gauge
  - Description: Number of nodes currently allocated to running tests
  - Example: ducktape_nodes_in_use 3

ducktape_max_used_nodes:
  - Type: Gauge
  - Description: High-water mark of nodes in use over the life of the cluster
  - Example: ducktape_max_used_nodes 5

ducktape_alloc_failures_total{kind}:
  - Type: Counter
  - Description: Total allocation failures by error kind
  - Labels: kind ("insufficient_resources", "insufficient_healthy_nodes")
  - Example: ducktape_alloc_failures_total{kind="insufficient_healthy_nodes"} 2

ducktape_alloc_duration_seconds:
  - Type: Histogram
  - Description: Time taken to allocate a subcluster in seconds
  - Buckets: Default Prometheus buckets

Scheduler Metrics:

ducktape_tests_scheduled:
  - Type: Gauge
  - Description: Number of test contexts currently held by the scheduler
  - Example: ducktape_tests_scheduled 12

ducktape_tests_unschedulable_total:
  - Type: Counter
  - Description: Total test contexts dropped as permanently unschedulable
  - Example: ducktape_tests_unschedulable_total 1

Supervisor / Run Metrics:

ducktape_tests_running:
  - Type: Gauge
  - Description: Number of workers currently active
  - Example: ducktape_tests_running 2

ducktape_tests_completed_total{status}:
  - Type: Counter
  - Description: Total completed tests by final status
  - Labels: status (pass/fail/flaky/ignore)
  - Example: ducktape_tests_completed_total{status="flaky"} 3

ducktape_test_duration_seconds:
  - Type: Histogram
  - Description: Wall-clock duration of a single test run, from RUNNING to FINISHED
  - Buckets: 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800

ducktape_worker_terminations_total:
  - Type: Counter
  - Description: Total workers SIGKILL'd after exceeding the join timeout
  - Example: ducktape_worker_terminations_total 0

ducktape_deflake_retries_total:
  - Type: Counter
  - Description: Total deflake re-enqueues of a FAIL outcome
  - Example: ducktape_deflake_retries_total 4

IPC Metrics:

ducktape_ipc_retries_total:
  - Type: Counter
  - Description: Total sender-side retries due to reply timeout
  - Example: ducktape_ipc_retries_total 0

ducktape_ipc_events_total{event_type}:
  - Type: Counter
  - Description: Total IPC events received by the supervisor, by event type
  - Labels: event_type (READY/SETTING_UP/RUNNING/TEARING_DOWN/LOG/FINISHED)
  - Example: ducktape_ipc_events_total{event_type="FINISHED"} 12

# Usage

Updating Gauge Metrics:

	import "github.com/confluentinc/ducktape-core/pkg/metrics"

	// Set absolute value
	metrics.NodesAvailable.Set(5)

	// Increment/decrement
	metrics.TestsScheduled.Inc()
	metrics.TestsScheduled.Dec()

Updating Counter Metrics:

	// Increment by 1
	metrics.TestsUnschedulable.Inc()

	// Add with label values
	metrics.AllocFailuresTotal.WithLabelValues("insufficient_resources").Inc()

Recording Histogram Observations:

	// Direct observation
	metrics.AllocDuration.Observe(0.125) // 125ms

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.AllocDuration)

Using Timer with Labels:

	timer := metrics.NewTimer()
	// ... perform operation ...
	// ObserveDurationVec takes a prometheus.ObserverVec such as a
	// HistogramVec; this package's own vectors are all CounterVecs, so
	// the caller supplies its own.
	timer.ObserveDurationVec(myHistogramVec, "pass")

Complete Example:

	package main

	import (
		"net/http"
		"time"
		"github.com/confluentinc/ducktape-core/pkg/metrics"
	)

	func main() {
		// Update cluster metrics
		metrics.NodesAvailable.Set(4)
		metrics.NodesInUse.Set(2)
		metrics.MaxUsedNodes.Set(2)

		// Time an operation
		timer := metrics.NewTimer()
		allocateSubcluster()
		timer.ObserveDuration(metrics.AllocDuration)

		// Expose metrics endpoint
		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

	func allocateSubcluster() {
		time.Sleep(10 * time.Millisecond)
	}

# Integration Points

This package integrates with:

  - pkg/cluster: Updates node availability, max_used, and allocation-failure metrics
  - pkg/scheduler: Tracks scheduled/unschedulable test counts
  - pkg/runner: Instruments test duration, completion status, deflake retries
  - pkg/ipc: Counts sender retries and receiver event dispatch
  - Prometheus: Scrapes /metrics endpoint

This package also exposes health/readiness handlers (HealthHandler,
ReadyHandler, LivenessHandler) for components that register themselves via
RegisterComponent/UpdateComponent. cmd/ducktape-core's "run" subcommand
mounts these alongside Handler() and a Collector polling the run's cluster
and scheduler, behind an optional --metrics-addr flag.

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()
  - No runtime registration needed

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels
  - Avoid high-cardinality labels (test IDs, timestamps)
  - Document label values in metric description
  - Keep label count low (< 5 per metric)

Timer Pattern:
  - Create timer at operation start
  - Defer or explicitly call ObserveDuration
  - Automatically calculates elapsed time
  - Supports both simple and vector histograms

Global Metrics:
  - Package-level variables for all metrics
  - Accessible from any ducktape-core package
  - Thread-safe concurrent updates
  - No initialization required by callers

# Performance Characteristics

Metric Update Overhead:
  - Gauge set/inc: ~50ns per operation
  - Counter inc: ~50ns per operation
  - Histogram observe: ~200ns per operation
  - Labels: +100ns per label value
  - Negligible impact on hot path

Memory Usage:
  - Per metric: ~1KB baseline
  - Per label combination: ~100 bytes
  - Histogram buckets: ~50 bytes each
  - Total: well under 1MB for a typical run

Scrape Performance:
  - Metrics gathering: ~1-5ms for full scrape
  - HTTP response: ~10ms for typical metric set
  - Recommendation: Scrape interval ≥ 15s
  - Concurrent scrapes: Safe (read-only)

Cardinality Management:
  - Low cardinality: kind, status, event_type (< 10 values)
  - Avoid: test IDs, timestamps (unbounded)
  - Best practice: Aggregate high-cardinality in logs, not metric labels

# Troubleshooting

Common Issues:

Missing Metrics:
  - Symptom: Metric not appearing in /metrics output
  - Check: Metric registered in init() function
  - Check: MustRegister called (panics if duplicate)
  - Solution: Verify metric variable is exported

High Cardinality:
  - Symptom: Prometheus memory usage grows
  - Cause: Using test IDs or unbounded values as labels
  - Check: Label cardinality (count unique combinations)
  - Solution: Remove high-cardinality labels, aggregate differently

Histogram Bucket Mismatch:
  - Symptom: No data in desired percentiles
  - Cause: Buckets don't cover observed value range
  - Check: Histogram sum / count for average
  - Solution: Customize buckets for value range

Stale Metrics:
  - Symptom: Metrics not updating
  - Cause: Code not calling metric update methods
  - Check: Add logging around metric updates
  - Solution: Instrument code paths correctly

# Monitoring

Prometheus Queries (PromQL):

Cluster Health:
  - Available nodes: ducktape_nodes_available
  - In-use nodes: ducktape_nodes_in_use
  - Alloc failure rate: rate(ducktape_alloc_failures_total[5m])

Run Performance:
  - Test completion rate: rate(ducktape_tests_completed_total[1m])
  - Flaky rate: rate(ducktape_tests_completed_total{status="flaky"}[5m])
  - p95 test duration: histogram_quantile(0.95, ducktape_test_duration_seconds_bucket)

Scheduler Backlog:
  - Backlog size: ducktape_tests_scheduled
  - Unschedulable rate: rate(ducktape_tests_unschedulable_total[5m])

IPC Health:
  - Retry rate: rate(ducktape_ipc_retries_total[1m])
  - Event rate by type: rate(ducktape_ipc_events_total[1m])

# Alerting Rules

Recommended Prometheus alerts:

High Test Failure Rate:
  - Alert: rate(ducktape_tests_completed_total{status="fail"}[5m]) > 0.1
  - Description: More than 0.1 tests failing per second
  - Action: Check supervisor logs, cluster health, worker spawn failures

No Available Nodes:
  - Alert: ducktape_nodes_available == 0
  - Description: Cluster has no nodes left to allocate
  - Action: Check for runaway shrinkage or a scheduling deadlock

Frequent Worker Terminations:
  - Alert: increase(ducktape_worker_terminations_total[10m]) > 3
  - Description: More than 3 workers SIGKILL'd in 10 minutes
  - Action: Check for hung test bodies or a too-short join timeout

High Alloc Latency:
  - Alert: histogram_quantile(0.95, ducktape_alloc_duration_seconds_bucket) > 1
  - Description: p95 allocation latency > 1 second
  - Action: Check cluster provider health probes and node count

# Grafana Dashboards

Recommended dashboard panels:

Cluster Overview:
  - Gauge: Nodes available / in use
  - Time series: max_used high-water mark
  - Time series: Allocation failure rate by kind

Run Performance:
  - Time series: Tests completed by status
  - Heatmap: Test duration distribution
  - Single stat: Currently running tests

Scheduler Backlog:
  - Time series: Tests scheduled over time
  - Time series: Unschedulable rate

IPC Health:
  - Time series: Retry rate
  - Time series: Events by type

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
