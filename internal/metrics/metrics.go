// Package metrics holds the Prometheus metrics for the playground.
// Uses a custom registry; nothing is registered globally.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/js-playground/internal/executor"
)

// Collector holds all Prometheus metrics.
type Collector struct {
	Registry *prometheus.Registry

	// Execution metrics.
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ActiveExecutions  *prometheus.GaugeVec

	// Session metrics.
	ActiveSessions prometheus.Gauge

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with all metrics registered on a fresh
// registry, plus the Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playground",
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total code executions by backend and outcome.",
		}, []string{"backend", "outcome"}),

		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "playground",
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "Code execution duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"backend"}),

		ActiveExecutions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "playground",
			Subsystem: "executor",
			Name:      "active_executions",
			Help:      "Executions currently running.",
		}, []string{"backend"}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "playground",
			Subsystem: "ws",
			Name:      "active_sessions",
			Help:      "Open WebSocket execution sessions.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playground",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "playground",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.ExecutionsTotal,
		c.ExecutionDuration,
		c.ActiveExecutions,
		c.ActiveSessions,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry})
}

// ObserveExecution records one finished execution. outcome is "success",
// a failure kind, or "backend_error".
func (c *Collector) ObserveExecution(backend, outcome string, d time.Duration) {
	c.ExecutionsTotal.WithLabelValues(backend, outcome).Inc()
	c.ExecutionDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveHTTP records one served HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// instrumentedExecutor decorates an Executor with execution metrics.
type instrumentedExecutor struct {
	next      executor.Executor
	backend   string
	collector *Collector
}

// InstrumentExecutor wraps exec so every Execute call is counted and timed
// under the given backend label.
func InstrumentExecutor(exec executor.Executor, backend string, c *Collector) executor.Executor {
	return &instrumentedExecutor{next: exec, backend: backend, collector: c}
}

func (e *instrumentedExecutor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	active := e.collector.ActiveExecutions.WithLabelValues(e.backend)
	active.Inc()
	defer active.Dec()

	start := time.Now()
	res, err := e.next.Execute(ctx, req)

	outcome := "backend_error"
	switch {
	case err != nil || res == nil:
	case res.OK():
		outcome = "success"
	default:
		outcome = string(res.Kind)
	}
	e.collector.ObserveExecution(e.backend, outcome, time.Since(start))

	return res, err
}
