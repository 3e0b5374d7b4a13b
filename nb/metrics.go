package nb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "bfd_agent"

// Metrics exports the transaction counters. A nil *Metrics records nothing.
type Metrics struct {
	Transactions *prometheus.CounterVec
	Duration     prometheus.Histogram
	Sessions     prometheus.Gauge
	Profiles     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_total",
			Help:      "Configuration transactions by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transaction_duration_seconds",
			Help:      "Time spent processing a configuration transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions",
			Help:      "BFD sessions in the registry.",
		}),
		Profiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "profiles",
			Help:      "BFD profiles configured.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transactions, m.Duration, m.Sessions, m.Profiles)
	}
	return m
}

func (m *Metrics) observe(o Outcome, d time.Duration, sessions, profiles int) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(o.String()).Inc()
	m.Duration.Observe(d.Seconds())
	m.Sessions.Set(float64(sessions))
	m.Profiles.Set(float64(profiles))
}

func (m *Metrics) sessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}
