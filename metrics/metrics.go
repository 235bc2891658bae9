// Package metrics exposes Prometheus metrics for the attendance service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Write outcomes for TrackedWritesTotal.
const (
	OutcomeApplied   = "applied"
	OutcomeQuota     = "rejected_quota"
	OutcomeDuplicate = "rejected_duplicate"
	OutcomeInvalid   = "rejected_invalid"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

var (
	ReconciliationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_reconciliations_total",
			Help: "Total number of reconciliations computed",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendance_reconcile_duration_seconds",
			Help:    "Time spent reconciling official and tracked records",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
	)

	ReconciledSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_reconciled_sessions_total",
			Help: "Reconciled sessions by provenance (official, correction, extra)",
		},
		[]string{"provenance"},
	)

	ProjectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_projections_total",
			Help: "Total number of bunk projections computed on request",
		},
	)

	TrackedWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_tracked_writes_total",
			Help: "Tracked record writes by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attendance_api_request_duration_seconds",
			Help:    "API request duration by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(ReconciliationsTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(ReconciledSessions)
	prometheus.MustRegister(ProjectionsTotal)
	prometheus.MustRegister(TrackedWritesTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
