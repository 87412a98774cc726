package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for credential issuance.
type Metrics struct {
	Generated          *prometheus.CounterVec
	GenerationRejected *prometheus.CounterVec
	Disabled           prometheus.Counter
	Extended           prometheus.Counter
	GenerateLatency    prometheus.Histogram
}

// New registers credential collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Generated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrpass_credentials_generated_total",
			Help: "Credentials issued, labeled by path (minted or reactivated)",
		}, []string{"path"}),
		GenerationRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrpass_credential_generation_rejected_total",
			Help: "Generation requests refused, labeled by reason",
		}, []string{"reason"}),
		Disabled: f.NewCounter(prometheus.CounterOpts{
			Name: "qrpass_credentials_disabled_total",
			Help: "Credentials disabled",
		}),
		Extended: f.NewCounter(prometheus.CounterOpts{
			Name: "qrpass_credentials_extended_total",
			Help: "Credential expiry extensions",
		}),
		GenerateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrpass_credential_generate_latency_seconds",
			Help:    "Latency of credential generation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementGenerated(path string) {
	if m == nil {
		return
	}
	m.Generated.WithLabelValues(path).Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	if m == nil {
		return
	}
	m.GenerationRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementDisabled() {
	if m == nil {
		return
	}
	m.Disabled.Inc()
}

func (m *Metrics) IncrementExtended() {
	if m == nil {
		return
	}
	m.Extended.Inc()
}

func (m *Metrics) ObserveGenerateLatency(seconds float64) {
	if m == nil {
		return
	}
	m.GenerateLatency.Observe(seconds)
}
