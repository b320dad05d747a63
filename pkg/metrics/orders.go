package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Step outcomes shared by the order service and its metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// OrderMetrics counts checkout splits, status transitions and sub-step outcomes.
type OrderMetrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	steps       *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on reg. A nil registerer yields
// a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "klinic_orders_created_total",
		Help: "Orders created by checkout split kind.",
	}, []string{"kind"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "klinic_order_transitions_total",
		Help: "Order status transition attempts by target status and outcome.",
	}, []string{"target", "outcome"})
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "klinic_order_steps_total",
		Help: "Order sub-step results by step and outcome.",
	}, []string{"step", "outcome"})
	reg.MustRegister(created, transitions, steps)
	return &OrderMetrics{
		created:     created,
		transitions: transitions,
		steps:       steps,
	}
}

// IncCreated counts one order produced by checkout.
func (m *OrderMetrics) IncCreated(kind string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveTransition counts one transition attempt.
func (m *OrderMetrics) ObserveTransition(target string, ok bool) {
	if m == nil || m.transitions == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailed
	}
	m.transitions.WithLabelValues(normalizeLabel(target), outcome).Inc()
}

// ObserveStep counts one sub-step result.
func (m *OrderMetrics) ObserveStep(step, outcome string) {
	if m == nil || m.steps == nil {
		return
	}
	m.steps.WithLabelValues(normalizeLabel(step), normalizeLabel(outcome)).Inc()
}
