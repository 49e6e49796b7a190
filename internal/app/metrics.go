package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/specialistvlad/assetgraph/internal/controller"
)

const metricsNamespace = "assetgraph"

// Pass outcomes used as the "result" label.
const (
	resultClean   = "clean"
	resultIssues  = "issues"
	resultAborted = "aborted"
)

// metrics are the Prometheus collectors served on /metrics.
type metrics struct {
	passes       *prometheus.CounterVec
	issues       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	assetChanges prometheus.Counter
	reloads      prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "passes_total",
			Help:      "Passes performed by mode and result.",
		}, []string{"mode", "result"}),
		issues: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "issues_total",
			Help:      "Issues reported by kind.",
		}, []string{"kind"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"mode"}),
		assetChanges: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "asset_changes_total",
			Help:      "Changed asset paths received from the watcher.",
		}),
		reloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "document_reloads_total",
			Help:      "Graph document reloads in watch mode.",
		}),
	}
}

func (m *metrics) observe(mode string, started time.Time, issues controller.IssueList) {
	result := resultClean
	switch {
	case issues.Has(controller.Aborted):
		result = resultAborted
	case !issues.Empty():
		result = resultIssues
	}
	m.passes.WithLabelValues(mode, result).Inc()
	m.duration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
	for _, issue := range issues {
		m.issues.WithLabelValues(issue.Kind.String()).Inc()
	}
}
