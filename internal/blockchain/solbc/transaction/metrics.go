// internal/blockchain/solbc/transaction/metrics.go
package transaction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	submissions       *prometheus.CounterVec
	durationHistogram *prometheus.HistogramVec
}

// NewMetrics создает метрики. Если reg == nil, метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medchain",
		Name:      "tx_submissions_total",
		Help:      "Total number of transaction submissions by operation and outcome",
	}, []string{"operation", "outcome"})
	durationHistogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medchain",
		Name:      "tx_duration_seconds",
		Help:      "Time from building a transaction to its confirmation",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"operation"})

	if reg != nil {
		reg.MustRegister(submissions, durationHistogram)
	}

	return &Metrics{
		submissions:       submissions,
		durationHistogram: durationHistogram,
	}
}

// TrackTransaction фиксирует исход и длительность отправки
func (m *Metrics) TrackTransaction(operation, outcome string, start time.Time) {
	m.submissions.WithLabelValues(operation, outcome).Inc()
	if outcome == StatusConfirmed || outcome == StatusFinalized {
		m.durationHistogram.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
