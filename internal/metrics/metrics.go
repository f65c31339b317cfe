// Package metrics exposes Prometheus collectors for job runs and chat traffic.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/ocalt/internal/logger"
)

type Metrics struct {
	registry        *prometheus.Registry
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobsSkipped     *prometheus.CounterVec
	jobsRunning     prometheus.Gauge
	channelMessages *prometheus.CounterVec
	inboundRouted   *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Completed job runs by terminal status",
			},
			[]string{"agent", "job", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall-clock duration of job runs",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"agent", "job"},
		),
		jobsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_skipped_total",
				Help:      "Fires skipped because the previous run of the same job was still in flight",
			},
			[]string{"agent", "job"},
		),
		jobsRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_running",
				Help:      "Job runs currently waiting for completion",
			},
		),
		channelMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_messages_total",
				Help:      "Chat messages by channel, kind (job, reply, notice, inbound) and result",
			},
			[]string{"channel", "kind", "result"},
		),
		inboundRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbound_routed_total",
				Help:      "Inbound chat messages by routing result",
			},
			[]string{"channel", "result"},
		),
	}

	m.registry.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobsSkipped,
		m.jobsRunning,
		m.channelMessages,
		m.inboundRouted,
	)

	return m
}

func (m *Metrics) RecordRun(agent, job, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(agent, job, status).Inc()
	m.jobDuration.WithLabelValues(agent, job).Observe(duration.Seconds())
}

func (m *Metrics) RecordSkip(agent, job string) {
	if m == nil {
		return
	}
	m.jobsSkipped.WithLabelValues(agent, job).Inc()
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.jobsRunning.Inc()
}

func (m *Metrics) RunFinished() {
	if m == nil {
		return
	}
	m.jobsRunning.Dec()
}

func (m *Metrics) RecordMessage(channel, kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.channelMessages.WithLabelValues(channel, kind, result).Inc()
}

func (m *Metrics) RecordRouted(channel, result string) {
	if m == nil {
		return
	}
	m.inboundRouted.WithLabelValues(channel, result).Inc()
}

// Gatherer returns the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on listen until ctx is done.
func (m *Metrics) Serve(ctx context.Context, listen string, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics endpoint listening", logger.Field{Key: "listen", Value: listen})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
