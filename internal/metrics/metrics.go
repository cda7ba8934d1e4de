// Package metrics exposes Prometheus collectors for import runs and calls to
// the survey platform.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

const namespace = "surveyimport"

// Metrics implements core.Observer and zenloop.RequestObserver. A nil
// *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	rows          *prometheus.CounterVec
	additional    *prometheus.CounterVec
	runs          *prometheus.CounterVec
	dateFallbacks prometheus.Counter
	remote        *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows handled by import runs, by outcome.",
		}, []string{"outcome"}),
		additional: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "additional_answers_total",
			Help:      "Additional answers handled, by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Import runs that finished processing, by final phase.",
		}, []string{"phase"}),
		dateFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "date_fallbacks_total",
			Help:      "Rows whose date could not be parsed and was replaced with the current time.",
		}),
		remote: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of calls to the survey platform.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rows,
		m.additional,
		m.runs,
		m.dateFallbacks,
		m.remote,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RowSubmitted() {
	if m != nil {
		m.rows.WithLabelValues("submitted").Inc()
	}
}

func (m *Metrics) RowFailed() {
	if m != nil {
		m.rows.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) RowSkipped() {
	if m != nil {
		m.rows.WithLabelValues("skipped").Inc()
	}
}

func (m *Metrics) AdditionalAnswer(outcome string) {
	if m != nil {
		m.additional.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) DateFallback() {
	if m != nil {
		m.dateFallbacks.Inc()
	}
}

func (m *Metrics) RunFinished(phase core.Phase) {
	if m != nil {
		m.runs.WithLabelValues(string(phase)).Inc()
	}
}

// ObserveRequest records one remote call. A zero status is labelled "none".
func (m *Metrics) ObserveRequest(op string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.remote.WithLabelValues(op, code).Observe(elapsed.Seconds())
}
