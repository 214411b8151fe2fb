// Package metrics registers the Prometheus series the executor and safety
// manager emit: loop counters, resource pressure, and circuit breaker state.
// Grounded on the teacher's prometheus.NewCounterVec/NewGaugeVec +
// registry.MustRegister wiring (test/unit/gateway/metrics/error_recovery_test.go).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every series this module emits, all on a caller-supplied
// registry so cmd/investigator controls what gets exposed on /metrics.
type Metrics struct {
	OrchestratorLoops    *prometheus.CounterVec
	ToolExecutions       *prometheus.CounterVec
	DomainAgentRuns      *prometheus.CounterVec
	SafetyOverrides      *prometheus.CounterVec
	ResourcePressure     prometheus.Gauge
	BreakerState         *prometheus.GaugeVec
	InvestigationOutcome *prometheus.CounterVec
	NodeDuration         *prometheus.HistogramVec
}

// New builds and registers the full metric set on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		OrchestratorLoops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hybrid_investigator_orchestrator_loops_total",
			Help: "Total hybrid_orchestrator node executions, labeled by investigation outcome status.",
		}, []string{"status"}),
		ToolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hybrid_investigator_tool_executions_total",
			Help: "Total tool invocations, labeled by tool name and success.",
		}, []string{"tool", "success"}),
		DomainAgentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hybrid_investigator_domain_agent_runs_total",
			Help: "Total domain agent invocations, labeled by domain and finding status.",
		}, []string{"domain", "status"}),
		SafetyOverrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hybrid_investigator_safety_overrides_total",
			Help: "Total safety overrides applied by hybrid_orchestrator, labeled by concern type.",
		}, []string{"concern_type"}),
		ResourcePressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hybrid_investigator_resource_pressure",
			Help: "Current safety manager resource pressure in [0,1].",
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hybrid_investigator_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open), labeled by breaker name.",
		}, []string{"breaker"}),
		InvestigationOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hybrid_investigator_investigations_total",
			Help: "Total completed investigations, labeled by final status.",
		}, []string{"status"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hybrid_investigator_node_duration_seconds",
			Help:    "Node execution duration in seconds, labeled by node name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
	}

	registry.MustRegister(
		m.OrchestratorLoops,
		m.ToolExecutions,
		m.DomainAgentRuns,
		m.SafetyOverrides,
		m.ResourcePressure,
		m.BreakerState,
		m.InvestigationOutcome,
		m.NodeDuration,
	)
	return m
}

// ObserveBreakerState maps a gobreaker.State's String() form onto the
// breaker_state gauge's numeric encoding.
func (m *Metrics) ObserveBreakerState(breaker, state string) {
	var value float64
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	default:
		value = 0
	}
	m.BreakerState.WithLabelValues(breaker).Set(value)
}
