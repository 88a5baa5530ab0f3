// Package metrics provides Prometheus collectors for verification and commit outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance engine. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Verification outcomes by kind ("match", "no_match", "no_face", "unavailable", ...)
	VerifyOutcome *prometheus.CounterVec

	// Commit outcomes by status and source
	CommitOutcome *prometheus.CounterVec

	// Extraction latency (embedding server round trip)
	ExtractLatency prometheus.Histogram

	// Full verification latency including directory lookup
	VerifyLatency prometheus.Histogram

	// Match distances of successful comparisons
	MatchDistance prometheus.Histogram
}

// New registers the collectors with the default Prometheus registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerifyOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_verify_outcomes_total",
			Help: "Total verification outcomes by kind",
		}, []string{"kind"}),

		CommitOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_commit_outcomes_total",
			Help: "Total commit attempts by outcome status and source",
		}, []string{"status", "source"}),

		ExtractLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_extract_duration_seconds",
			Help:    "Duration of template extraction by the embedding server",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_verify_duration_seconds",
			Help:    "Duration of full verification including directory lookup",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		MatchDistance: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_match_distance",
			Help:    "Euclidean distance between probe and reference templates",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 12),
		}),
	}
}

// IncrementVerify records a verification outcome.
func (m *Metrics) IncrementVerify(kind string) {
	if m != nil {
		m.VerifyOutcome.WithLabelValues(kind).Inc()
	}
}

// IncrementCommit records a commit outcome.
func (m *Metrics) IncrementCommit(status, source string) {
	if m != nil {
		m.CommitOutcome.WithLabelValues(status, source).Inc()
	}
}

// ObserveExtractLatency records the extraction duration.
func (m *Metrics) ObserveExtractLatency(d time.Duration) {
	if m != nil {
		m.ExtractLatency.Observe(d.Seconds())
	}
}

// ObserveVerifyLatency records the total verification duration.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

// ObserveDistance records a comparison distance.
func (m *Metrics) ObserveDistance(d float64) {
	if m != nil {
		m.MatchDistance.Observe(d)
	}
}
