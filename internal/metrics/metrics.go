// Package metrics exposes pipeline instrumentation to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"incident-pipeline/internal/models"
)

type Metrics struct {
	registry *prometheus.Registry

	uptimePct       prometheus.Gauge
	maxQueueDepth   prometheus.Gauge
	servicesByState *prometheus.GaugeVec
	alertsByKind    *prometheus.GaugeVec
	evaluations     prometheus.Counter

	callbacks  *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	heartbeats *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uptimePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchdog_uptime_24h_pct",
			Help: "Share of reporting services not down, in percent.",
		}),
		maxQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchdog_max_queue_depth",
			Help: "Largest queue depth among latest heartbeats.",
		}),
		servicesByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "watchdog_services",
			Help: "Services by latest reported state.",
		}, []string{"state"}),
		alertsByKind: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "watchdog_alerts",
			Help: "Active watchdog alerts by kind.",
		}, []string{"kind"}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchdog_evaluations_total",
			Help: "Watchdog evaluation cycles run.",
		}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openclaw_callbacks_total",
			Help: "Inbound agent callbacks by outcome.",
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openclaw_deliveries_total",
			Help: "Outbound envelope delivery attempts by outcome.",
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_decisions_total",
			Help: "Escalation decisions acted on, by kind.",
		}, []string{"kind"}),
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heartbeats_ingested_total",
			Help: "Heartbeat records accepted, by source.",
		}, []string{"source"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uptimePct,
		m.maxQueueDepth,
		m.servicesByState,
		m.alertsByKind,
		m.evaluations,
		m.callbacks,
		m.deliveries,
		m.decisions,
		m.heartbeats,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSummary publishes one watchdog evaluation.
func (m *Metrics) ObserveSummary(s models.WatchdogSummary, services int) {
	if m == nil {
		return
	}
	m.evaluations.Inc()
	m.uptimePct.Set(float64(s.Uptime24hPct))
	m.maxQueueDepth.Set(float64(s.MaxQueueDepth))
	m.servicesByState.WithLabelValues("total").Set(float64(services))
	m.servicesByState.WithLabelValues("down").Set(float64(s.DownServices))
	m.servicesByState.WithLabelValues("degraded").Set(float64(s.DegradedServices))

	counts := map[models.AlertKind]int{
		models.AlertDown: 0, models.AlertStale: 0, models.AlertQueueWarning: 0, models.AlertQueueCritical: 0,
	}
	for _, a := range s.Alerts {
		counts[a.Kind]++
	}
	for kind, n := range counts {
		m.alertsByKind.WithLabelValues(string(kind)).Set(float64(n))
	}
}

// The recorders below are no-ops on a nil *Metrics.

func (m *Metrics) CallbackHandled(outcome string) {
	if m != nil {
		m.callbacks.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) DeliveryAttempted(outcome string) {
	if m != nil {
		m.deliveries.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) DecisionApplied(kind string) {
	if m != nil {
		m.decisions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) HeartbeatIngested(source string) {
	if m != nil {
		m.heartbeats.WithLabelValues(source).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Instrument wraps next with request count and latency collection.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
