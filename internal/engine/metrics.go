package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the four signals operators watch: step throughput,
// repair outcomes, gate dispositions and repair latency.
type Metrics struct {
	StepsTotal     *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	RepairsTotal   *prometheus.CounterVec
	RepairDuration prometheus.Histogram
	GatesTotal     *prometheus.CounterVec
	PendingGates   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// With a nil registerer metrics go to a throwaway registry, which
	// keeps tests free of global registration conflicts.
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		StepsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gavel_steps_total",
			Help: "Pipeline steps executed, by outcome.",
		}, []string{"outcome"}),

		StepDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gavel_step_duration_seconds",
			Help:    "Histogram of full step latencies including repair.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),

		RepairsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gavel_repairs_total",
			Help: "Repair runs, by repair type and result.",
		}, []string{"repair_type", "result"}),

		RepairDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "gavel_repair_duration_seconds",
			Help:    "Histogram of repair loop latencies.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		GatesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gavel_gates_total",
			Help: "Gate evaluations, by gate type and resulting state.",
		}, []string{"gate_type", "state"}),

		PendingGates: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gavel_gates_pending",
			Help: "Gates currently awaiting a human decision.",
		}),
	}
}
