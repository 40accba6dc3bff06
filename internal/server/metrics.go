package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "keyoku_devserver"

// serverMetrics holds the dev server's Prometheus collectors. Each server
// owns its registry so tests can run several servers side by side.
type serverMetrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestCounter  *prometheus.CounterVec
	activeRequests  prometheus.Gauge
	jobsFinished    *prometheus.CounterVec
}

func newServerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status_code"},
		),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total API requests",
			},
			[]string{"method", "route", "status_code"},
		),
		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_requests",
				Help:      "Requests currently being served",
			},
		),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "jobs_finished_total",
				Help:      "Jobs that reached a terminal status",
			},
			[]string{"kind", "status"},
		),
	}

	m.registry.MustRegister(
		m.requestDuration,
		m.requestCounter,
		m.activeRequests,
		m.jobsFinished,
		collectors.NewGoCollector(),
	)
	return m
}

// observe records one finished request. route is the matched mux pattern
// so path ids do not explode label cardinality.
func (m *serverMetrics) observe(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	m.requestCounter.WithLabelValues(method, route, code).Inc()
}

func (m *serverMetrics) jobFinished(kind, status string) {
	m.jobsFinished.WithLabelValues(kind, status).Inc()
}

func (m *serverMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
