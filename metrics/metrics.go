/*
Package metrics exposes Prometheus instrumentation for the penalty engine.

Registered once at startup and injected where needed; a nil *Metrics is safe
to call everywhere so tests can skip instrumentation.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Calculations    *prometheus.CounterVec
	SimulationDays  prometheus.Histogram
	LedgerRefreshes *prometheus.CounterVec
}

// New creates and registers the engine's collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "penalty_calculations_total",
			Help: "Penalty calculations by kind, finalization, and outcome.",
		}, []string{"kind", "finalize", "outcome"}),
		SimulationDays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "penalty_simulation_days",
			Help:    "Calendar days replayed per simulation.",
			Buckets: []float64{1, 7, 30, 90, 180, 365, 730},
		}),
		LedgerRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "penalty_ledger_refreshes_total",
			Help: "External ledger refreshes by freshness.",
		}, []string{"fresh"}),
	}
	reg.MustRegister(m.Calculations, m.SimulationDays, m.LedgerRefreshes)
	return m
}

// ObserveCalculation records one calculation attempt.
func (m *Metrics) ObserveCalculation(kind string, finalize bool, outcome string) {
	if m == nil {
		return
	}
	m.Calculations.WithLabelValues(kind, boolLabel(finalize), outcome).Inc()
}

// ObserveSimulation records the day count of a completed simulation.
func (m *Metrics) ObserveSimulation(days int) {
	if m == nil {
		return
	}
	m.SimulationDays.Observe(float64(days))
}

// ObserveRefresh records a ledger refresh and its freshness.
func (m *Metrics) ObserveRefresh(fresh bool) {
	if m == nil {
		return
	}
	m.LedgerRefreshes.WithLabelValues(boolLabel(fresh)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
