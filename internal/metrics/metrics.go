// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"treasury/internal/core"
)

const namespace = "treasury"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	mutations     *prometheus.CounterVec
	validation    prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	mirrorOps     *prometheus.CounterVec
	published     *prometheus.CounterVec

	totals      *prometheus.GaugeVec
	budgets     prometheus.Gauge
	byStatus    *prometheus.GaugeVec
	staleStatus prometheus.Gauge
}

// New registers the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Document store calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Document store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "mutations_total",
			Help:      "Budget mutations applied to the repository snapshot.",
		}, []string{"kind"}),
		validation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "validation_failures_total",
			Help:      "Budget form submissions rejected by validation.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		mirrorOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "operations_total",
			Help:      "Ledger mirror operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Budget change events forwarded to the message broker by kind and outcome.",
		}, []string{"kind", "outcome"}),
		totals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budgets",
			Name:      "amount",
			Help:      "Current totals across all budgets, in currency units.",
		}, []string{"kind"}),
		budgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budgets",
			Name:      "count",
			Help:      "Number of budgets in the current snapshot.",
		}),
		byStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budgets",
			Name:      "by_status",
			Help:      "Budgets per stored status.",
		}, []string{"status"}),
		staleStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budgets",
			Name:      "stale_status",
			Help:      "Budgets whose stored status disagrees with allocated and spent.",
		}),
	}

	reg.MustRegister(
		m.storeOps, m.storeDuration, m.mutations, m.validation,
		m.httpRequests, m.httpDuration, m.mirrorOps, m.published,
		m.totals, m.budgets, m.byStatus, m.staleStatus,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveStore records one store call.
func (m *Metrics) ObserveStore(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.storeOps.WithLabelValues(op, outcome).Inc()
	m.storeDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Mutation counts a change applied to the repository snapshot.
func (m *Metrics) Mutation(kind string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind).Inc()
}

// ValidationFailed counts a rejected form submission.
func (m *Metrics) ValidationFailed() {
	if m == nil {
		return
	}
	m.validation.Inc()
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Mirror counts a ledger mirror operation.
func (m *Metrics) Mirror(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.mirrorOps.WithLabelValues(kind, outcome).Inc()
}

// Published counts a change event handed to the broker. Dropped events use
// outcome "dropped".
func (m *Metrics) Published(kind, outcome string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(kind, outcome).Inc()
}

// SetStatistics publishes the current aggregate.
func (m *Metrics) SetStatistics(s core.Statistics) {
	if m == nil {
		return
	}
	m.totals.WithLabelValues("allocated").Set(s.TotalAllocated.Float())
	m.totals.WithLabelValues("spent").Set(s.TotalSpent.Float())
	m.totals.WithLabelValues("remaining").Set(s.TotalRemaining.Float())
	m.budgets.Set(float64(s.Count))
	for _, st := range core.Statuses {
		m.byStatus.WithLabelValues(string(st)).Set(float64(s.ByStatus[st]))
	}
	m.staleStatus.Set(float64(s.StaleStatus))
}
