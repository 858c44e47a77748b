package observe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports build and proving counters and latencies.
type Metrics struct {
	classify func(error) string

	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	inputs        prometheus.Histogram
	proofs        *prometheus.CounterVec
	proveDuration *prometheus.HistogramVec
}

// NewMetrics registers collectors on reg. classify maps a build error to a low-cardinality label;
// nil labels every failure "error".
func NewMetrics(reg prometheus.Registerer, classify func(error) string) (*Metrics, error) {
	if classify == nil {
		classify = func(error) string { return "error" }
	}
	m := &Metrics{
		classify: classify,
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shieldtx",
			Name:      "builds_total",
			Help:      "Transaction input builds by result.",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shieldtx",
			Name:      "build_duration_seconds",
			Help:      "Time to assemble prover inputs.",
			Buckets:   prometheus.DefBuckets,
		}),
		inputs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shieldtx",
			Name:      "inputs_selected",
			Help:      "UTXOs spent per transaction.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		proofs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shieldtx",
			Name:      "proofs_total",
			Help:      "Proofs produced by kind and result.",
		}, []string{"kind", "result"}),
		proveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shieldtx",
			Name:      "prove_duration_seconds",
			Help:      "Time spent proving.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{m.builds, m.buildDuration, m.inputs, m.proofs, m.proveDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) BuildStarted(int, bool) {}

func (m *Metrics) InputsSelected(_, inputs int) {
	m.inputs.Observe(float64(inputs))
}

func (m *Metrics) BuildFinished(took time.Duration, err error) {
	m.buildDuration.Observe(took.Seconds())
	if err != nil {
		m.builds.WithLabelValues(m.classify(err)).Inc()
		return
	}
	m.builds.WithLabelValues("ok").Inc()
}

func (m *Metrics) Proved(kind string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.proofs.WithLabelValues(kind, result).Inc()
	m.proveDuration.WithLabelValues(kind).Observe(took.Seconds())
}
