package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"elasticgrid/kernel"
)

// Metrics is the Prometheus exposition for the decision core: purely
// observational counters and gauges, never read by the pipeline itself.
type Metrics struct {
	registry *prometheus.Registry

	ticksTotal         prometheus.Counter
	actionsTotal       *prometheus.CounterVec
	hedgeTriggersTotal *prometheus.CounterVec
	takeProfitsTotal   *prometheus.CounterVec
}

// NewMetrics builds the grid engine's metric family on a dedicated
// registry, so multiple Server instances (as in tests) never collide on
// the global default registerer.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grid_ticks_total",
			Help: "Total number of ticks processed by the decision core.",
		}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_actions_total",
			Help: "Total number of actions emitted, by kind.",
		}, []string{"kind"}),
		hedgeTriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_hedge_triggers_total",
			Help: "Total number of IronClad hedge deployments, by triggering side.",
		}, []string{"side"}),
		takeProfitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grid_takeprofit_closes_total",
			Help: "Total number of basket take-profit closes, by side.",
		}, []string{"side"}),
	}
	m.registry.MustRegister(m.ticksTotal, m.actionsTotal, m.hedgeTriggersTotal, m.takeProfitsTotal)
	return m
}

// observeTick records one processed tick and its resulting action.
func (m *Metrics) observeTick(action kernel.Action) {
	m.ticksTotal.Inc()
	m.actionsTotal.WithLabelValues(string(action.Kind)).Inc()
	if action.Kind == kernel.ActionCloseAll && action.Comment != "" {
		m.takeProfitsTotal.WithLabelValues(action.Comment).Inc()
	}
	if action.Alert {
		m.hedgeTriggersTotal.WithLabelValues(action.Comment).Inc()
	}
}
