package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ducktape_nodes_available",
			Help: "Number of nodes currently available for allocation",
		},
	)

	NodesInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ducktape_nodes_in_use",
			Help: "Number of nodes currently allocated to running tests",
		},
	)

	MaxUsedNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ducktape_max_used_nodes",
			Help: "High-water mark of nodes in use over the life of the cluster",
		},
	)

	AllocFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ducktape_alloc_failures_total",
			Help: "Total allocation failures by error kind",
		},
		[]string{"kind"},
	)

	AllocDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ducktape_alloc_duration_seconds",
			Help:    "Time taken to allocate a subcluster in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scheduler metrics
	TestsScheduled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ducktape_tests_scheduled",
			Help: "Number of test contexts currently held by the scheduler",
		},
	)

	TestsUnschedulable = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ducktape_tests_unschedulable_total",
			Help: "Total test contexts dropped as permanently unschedulable",
		},
	)

	// Supervisor / run metrics
	TestsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ducktape_tests_running",
			Help: "Number of workers currently active",
		},
	)

	TestsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ducktape_tests_completed_total",
			Help: "Total completed tests by final status",
		},
		[]string{"status"},
	)

	TestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ducktape_test_duration_seconds",
			Help:    "Wall-clock duration of a single test run, from RUNNING to FINISHED",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	WorkerTerminationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ducktape_worker_terminations_total",
			Help: "Total workers SIGKILL'd after exceeding the join timeout",
		},
	)

	DeflakeRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ducktape_deflake_retries_total",
			Help: "Total deflake re-enqueues of a FAIL outcome",
		},
	)

	// IPC metrics
	IPCRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ducktape_ipc_retries_total",
			Help: "Total sender-side retries due to reply timeout",
		},
	)

	IPCEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ducktape_ipc_events_total",
			Help: "Total IPC events received by the supervisor, by event type",
		},
		[]string{"event_type"},
	)
)

func init() {
	prometheus.MustRegister(NodesAvailable)
	prometheus.MustRegister(NodesInUse)
	prometheus.MustRegister(MaxUsedNodes)
	prometheus.MustRegister(AllocFailuresTotal)
	prometheus.MustRegister(AllocDuration)
	prometheus.MustRegister(TestsScheduled)
	prometheus.MustRegister(TestsUnschedulable)
	prometheus.MustRegister(TestsRunning)
	prometheus.MustRegister(TestsCompletedTotal)
	prometheus.MustRegister(TestDuration)
	prometheus.MustRegister(WorkerTerminationsTotal)
	prometheus.MustRegister(DeflakeRetriesTotal)
	prometheus.MustRegister(IPCRetriesTotal)
	prometheus.MustRegister(IPCEventsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
