package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected *prometheus.CounterVec
	Degraded prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "badguys_ratelimit_rejected_total",
			Help: "Requests rejected by the per-IP rate limiter, by endpoint class",
		}, []string{"class"}),
		Degraded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "badguys_ratelimit_degraded",
			Help: "1 while the shared rate limit store is failing and the in-memory fallback is used",
		}),
	}
}

func (m *Metrics) IncrementRejected(class string) {
	if m != nil {
		m.Rejected.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
	} else {
		m.Degraded.Set(0)
	}
}
