package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inferloop/dqcore/pkg/models"
)

// Metrics exposes the engine's Prometheus instrumentation. A nil *Metrics is
// safe to use and records nothing, so the engine does not depend on a
// registry being wired.
type Metrics struct {
	checksTotal      *prometheus.CounterVec
	checkDuration    *prometheus.HistogramVec
	blockingFailures prometheus.Counter
	reportsTotal     prometheus.Counter
}

// NewMetrics creates and registers the engine metrics on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dqcore",
			Name:      "checks_total",
			Help:      "Check evaluations by check kind and result status.",
		}, []string{"check_kind", "status"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dqcore",
			Name:      "check_duration_seconds",
			Help:      "Check evaluation duration by check kind.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"check_kind"}),
		blockingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dqcore",
			Name:      "blocking_failures_total",
			Help:      "Asset reports that raised the blocking-failure signal.",
		}),
		reportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dqcore",
			Name:      "reports_total",
			Help:      "Completed asset check reports.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.checksTotal, m.checkDuration, m.blockingFailures, m.reportsTotal)
	}
	return m
}

// ObserveCheck records one check evaluation.
func (m *Metrics) ObserveCheck(kind models.CheckKind, status models.CheckStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(string(kind), string(status)).Inc()
	m.checkDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

// ObserveReport records one completed asset report.
func (m *Metrics) ObserveReport(report *models.AssetCheckReport) {
	if m == nil {
		return
	}
	m.reportsTotal.Inc()
	if report.HasBlockingFailure {
		m.blockingFailures.Inc()
	}
}
