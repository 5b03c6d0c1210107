package main

import (
	"context"
	"net/http"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/log"
	"github.com/confluentinc/ducktape-core/pkg/metrics"
	"github.com/rs/zerolog"
)

// metricsServer wraps the /metrics, /healthz, /readyz, and /livez endpoints
// SPEC_FULL.md's ambient stack section promises alongside a metrics.Collector
// polling cluster/scheduler gauges. It is optional: runRun only starts one
// when --metrics-addr is non-empty.
type metricsServer struct {
	http      *http.Server
	collector *metrics.Collector
	logger    zerolog.Logger
}

// newMetricsServer builds the HTTP mux and collector but starts neither;
// call start() once the run's cluster/scheduler are ready to be polled.
func newMetricsServer(addr string, cluster metrics.ClusterSource, scheduler metrics.SchedulerSource, version string) *metricsServer {
	metrics.SetVersion(version)
	metrics.RegisterComponent("cluster", true, "")
	metrics.RegisterComponent("scheduler", true, "")
	metrics.RegisterComponent("ipc", true, "")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())

	return &metricsServer{
		http:      &http.Server{Addr: addr, Handler: mux},
		collector: metrics.NewCollector(cluster, scheduler),
		logger:    log.WithComponent("metrics-server"),
	}
}

// start begins polling cluster/scheduler gauges and serving the HTTP mux in
// the background. Listen errors other than a clean Shutdown are logged, not
// returned, since a dead metrics endpoint should never fail the run itself.
func (m *metricsServer) start() {
	m.collector.Start()
	go func() {
		if err := m.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error().Err(err).Str("addr", m.http.Addr).Msg("metrics server stopped unexpectedly")
		}
	}()
	m.logger.Info().Str("addr", m.http.Addr).Msg("serving /metrics, /healthz, /readyz, /livez")
}

// stop drains the collector and gives the HTTP server a few seconds to
// close its listener cleanly.
func (m *metricsServer) stop() {
	m.collector.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.http.Shutdown(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("metrics server shutdown")
	}
}
