package service

import (
	"net/http"
	"time"

	"github.com/armchr/junitmig/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts migration runs on a private registry. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	edits    *prometheus.CounterVec
	files    *prometheus.CounterVec
	warnings prometheus.Counter
	duration prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "junitmig_runs_total",
			Help: "Migration runs by outcome.",
		}, []string{"status"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "junitmig_edits_total",
			Help: "Applied edits by cleanup.",
		}, []string{"cleanup"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "junitmig_files_total",
			Help: "Files seen by runs, by state.",
		}, []string{"state"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "junitmig_warnings_total",
			Help: "Warnings reported by runs.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "junitmig_run_duration_seconds",
			Help:    "Duration of migration runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	m.registry.MustRegister(m.runs, m.edits, m.files, m.warnings, m.duration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(res *engine.Result, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.runs.WithLabelValues("error").Inc()
		return
	}
	m.runs.WithLabelValues("ok").Inc()
	m.files.WithLabelValues("scanned").Add(float64(res.Scanned))
	m.files.WithLabelValues("skipped").Add(float64(res.Skipped))
	m.files.WithLabelValues("changed").Add(float64(len(res.Files)))
	m.warnings.Add(float64(len(res.Warnings)))
	for _, f := range res.Files {
		for cleanup, n := range f.Applied {
			m.edits.WithLabelValues(cleanup).Add(float64(n))
		}
	}
}
