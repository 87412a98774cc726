package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for scanning and reconciliation.
type Metrics struct {
	ScanOutcomes      *prometheus.CounterVec
	ScanLatency       prometheus.Histogram
	DuplicatesRemoved prometheus.Counter
	ReconcileRuns     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScanOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrpass_scan_outcomes_total",
			Help: "Scan verifications, labeled by outcome and rejection reason",
		}, []string{"outcome", "reason"}),
		ScanLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "qrpass_scan_latency_seconds",
			Help:    "Latency of scan verification in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		DuplicatesRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "qrpass_duplicate_punches_removed_total",
			Help: "Redundant punches deleted by the reconciler",
		}),
		ReconcileRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrpass_reconcile_runs_total",
			Help: "Reconciler runs, labeled by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementAccepted() {
	if m == nil {
		return
	}
	m.ScanOutcomes.WithLabelValues("accepted", "").Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	if m == nil {
		return
	}
	m.ScanOutcomes.WithLabelValues("rejected", reason).Inc()
}

func (m *Metrics) ObserveScanLatency(seconds float64) {
	if m == nil {
		return
	}
	m.ScanLatency.Observe(seconds)
}

func (m *Metrics) AddDuplicatesRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicatesRemoved.Add(float64(n))
}

func (m *Metrics) IncrementReconcileRun(result string) {
	if m == nil {
		return
	}
	m.ReconcileRuns.WithLabelValues(result).Inc()
}
