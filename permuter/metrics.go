package permuter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "pipeperm"
	metricsSubsystem = "permuter"

	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

// runMetrics holds the prometheus collectors of one Permuter. A nil
// *runMetrics records nothing.
type runMetrics struct {
	// Units counts finished (definition, fold) units by status.
	Units *prometheus.CounterVec

	// UnitDuration observes wall time per unit.
	UnitDuration *prometheus.HistogramVec

	// Candidates counts hyperparameter configurations evaluated by inner search.
	Candidates prometheus.Counter

	// Runs counts completed Fit calls.
	Runs prometheus.Counter
}

// newRunMetrics registers the collectors on reg. Registering two permuters
// on the same registry panics, as with any duplicate prometheus collector.
func newRunMetrics(reg prometheus.Registerer) *runMetrics {
	factory := promauto.With(reg)
	return &runMetrics{
		Units: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "units_total",
				Help:      "Total (pipeline, outer fold) units evaluated by status",
			},
			[]string{"status"},
		),
		UnitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "unit_duration_seconds",
				Help:      "Duration of a (pipeline, outer fold) unit including inner search",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"status"},
		),
		Candidates: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "candidates_total",
				Help:      "Total hyperparameter configurations evaluated by inner search",
			},
		),
		Runs: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "runs_total",
				Help:      "Total completed Fit calls",
			},
		),
	}
}

func (m *runMetrics) observeUnit(status string, d time.Duration, candidates int) {
	if m == nil {
		return
	}
	m.Units.WithLabelValues(status).Inc()
	m.UnitDuration.WithLabelValues(status).Observe(d.Seconds())
	m.Candidates.Add(float64(candidates))
}

func (m *runMetrics) observeRun() {
	if m == nil {
		return
	}
	m.Runs.Inc()
}
