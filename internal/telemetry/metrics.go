// Package telemetry wires clew's observability: prometheus metrics for
// turns and tool executions, and an optional OTLP trace exporter.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks runtime counters on a dedicated prometheus registry so
// the gateway can expose them without touching the global default.
// All record methods are nil-safe.
type Metrics struct {
	registry *prometheus.Registry

	turns         prometheus.Counter
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	confirmations *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		turns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clew",
			Name:      "turns_total",
			Help:      "Model exchanges processed.",
		}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clew",
			Name:      "tool_calls_total",
			Help:      "Tool call resolutions by tool and status.",
		}, []string{"tool", "status"}),
		toolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clew",
			Name:      "tool_duration_seconds",
			Help:      "Wall-clock duration of tool executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clew",
			Name:      "confirmations_total",
			Help:      "Confirmation decisions by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTurn counts one model exchange.
func (m *Metrics) RecordTurn() {
	if m == nil {
		return
	}
	m.turns.Inc()
}

// RecordToolCall counts one resolved tool call.
func (m *Metrics) RecordToolCall(toolName, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName, status).Inc()
	m.toolDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordConfirmation counts one human decision.
func (m *Metrics) RecordConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Inc()
}
