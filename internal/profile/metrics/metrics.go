package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the profile moderation module.
type Metrics struct {
	ProfilesCreated   prometheus.Counter
	Decisions         *prometheus.CounterVec
	Reports           prometheus.Counter
	AnalyzerRequests  *prometheus.CounterVec
	AnalyzerDuration  prometheus.Histogram
	DuplicateAttempts prometheus.Counter
}

// New creates the profile metrics and registers them with the default registry.
func New() *Metrics {
	return &Metrics{
		ProfilesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "badguys_profiles_created_total",
			Help: "Total number of profile records staged for review",
		}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "badguys_moderation_decisions_total",
			Help: "Admin status decisions by resulting status",
		}, []string{"status"}),
		Reports: promauto.NewCounter(prometheus.CounterOpts{
			Name: "badguys_profile_reports_total",
			Help: "Corroborating reports added to existing records",
		}),
		AnalyzerRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "badguys_analyzer_requests_total",
			Help: "Analyzer gateway calls by outcome",
		}, []string{"outcome"}), // ok, rate_limited, quota_exhausted, upstream_failure, malformed_response
		AnalyzerDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "badguys_analyzer_duration_seconds",
			Help:    "Duration of analyzer gateway calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		DuplicateAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "badguys_profile_duplicate_attempts_total",
			Help: "Insert attempts rejected because the source url already exists",
		}),
	}
}

func (m *Metrics) IncrementProfileCreated() {
	if m != nil {
		m.ProfilesCreated.Inc()
	}
}

func (m *Metrics) IncrementDecision(status string) {
	if m != nil {
		m.Decisions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementReport() {
	if m != nil {
		m.Reports.Inc()
	}
}

func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.DuplicateAttempts.Inc()
	}
}

// ObserveAnalyzerCall records one gateway call and its outcome.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveAnalyzerCall(outcome string, start time.Time) {
	if m != nil {
		m.AnalyzerRequests.WithLabelValues(outcome).Inc()
		m.AnalyzerDuration.Observe(time.Since(start).Seconds())
	}
}
