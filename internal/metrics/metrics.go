// Package metrics exposes Prometheus collectors for the service and worker.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "conto"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	importRows   *prometheus.CounterVec
	ruleHits     prometheus.Counter
	syncOutcomes *prometheus.CounterVec
	previews     *prometheus.CounterVec
	persistFails prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Statement rows seen by the importer, by outcome.",
		}, []string{"outcome"}),
		ruleHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_auto_applied_total",
			Help:      "Transactions categorized by a stored rule.",
		}),
		syncOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_sync_total",
			Help:      "Spreadsheet sync attempts by operation and result.",
		}, []string{"operation", "result"}),
		previews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_previews_total",
			Help:      "Import previews by lifecycle event.",
		}, []string{"event"}),
		persistFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Store writes that failed after the local change was applied.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.importRows, m.ruleHits,
		m.syncOutcomes, m.previews, m.persistFails,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// ObserveImport records one parsed batch.
func (m *Metrics) ObserveImport(imported, duplicates, skipped, autoApplied int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues("new").Add(float64(imported))
	m.importRows.WithLabelValues("duplicate").Add(float64(duplicates))
	m.importRows.WithLabelValues("skipped").Add(float64(skipped))
	m.ruleHits.Add(float64(autoApplied))
}

func (m *Metrics) ObserveRuleHits(n int) {
	if m == nil {
		return
	}
	m.ruleHits.Add(float64(n))
}

func (m *Metrics) ObserveSync(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.syncOutcomes.WithLabelValues(operation, result).Inc()
}

// ObservePreview counts preview events: created, committed, expired, evicted.
func (m *Metrics) ObservePreview(event string) {
	if m == nil {
		return
	}
	m.previews.WithLabelValues(event).Inc()
}

func (m *Metrics) ObservePersistFailure() {
	if m == nil {
		return
	}
	m.persistFails.Inc()
}
