package service

import (
	"github.com/getAlby/evmhub.go/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is optional, a nil *Metrics records nothing.
type Metrics struct {
	passes         prometheus.Counter
	updateFailures prometheus.Counter
	transitions    *prometheus.CounterVec
	sweeps         *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmhub",
			Name:      "reconciliation_passes_total",
			Help:      "Number of completed reconciliation passes.",
		}),
		updateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmhub",
			Name:      "invoice_update_failures_total",
			Help:      "Number of invoice updates that failed during reconciliation.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evmhub",
			Name:      "invoice_transitions_total",
			Help:      "Number of persisted invoice state changes by target state.",
		}, []string{"state"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evmhub",
			Name:      "invoice_sweeps_total",
			Help:      "Number of forwarding attempts by result.",
		}, []string{"result"}),
	}
	if registerer != nil {
		registerer.MustRegister(m.passes, m.updateFailures, m.transitions, m.sweeps)
	}
	return m
}

func (m *Metrics) pass() {
	if m == nil {
		return
	}
	m.passes.Inc()
}

func (m *Metrics) updateFailed() {
	if m == nil {
		return
	}
	m.updateFailures.Inc()
}

func (m *Metrics) transition(state common.InvoiceState) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state.String()).Inc()
}

func (m *Metrics) sweep(result string) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(result).Inc()
}
