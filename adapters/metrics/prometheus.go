// Package metrics exposes authentication counters to Prometheus.
package metrics

import (
	"github.com/layer-3/bazaar/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements AuthMetrics with a labelled counter.
type PrometheusMetrics struct {
	attempts *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazaar",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Authentication attempts by flow and outcome.",
	}, []string{"flow", "outcome"})

	if err := reg.Register(attempts); err != nil {
		return nil, err
	}
	return &PrometheusMetrics{attempts: attempts}, nil
}

var _ ports.AuthMetrics = (*PrometheusMetrics)(nil)

// ObserveAttempt counts one attempt.
func (m *PrometheusMetrics) ObserveAttempt(flow, outcome string) {
	m.attempts.WithLabelValues(flow, outcome).Inc()
}
