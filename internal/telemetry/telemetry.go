// Package telemetry exposes the orchestrator's runtime counters/gauges as
// Prometheus metrics (spec.md §4 domain-stack table), wired to the real
// prometheus/client_golang the broader retrieval pack depends on even
// though no single example repo demonstrates its usage directly.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devorc/orchestrator/internal/eventbus"
)

// Registry holds the orchestrator's metric collectors behind one
// prometheus.Registerer, so a caller can mount them under its own HTTP
// mux without requiring the global default registry.
type Registry struct {
	registry *prometheus.Registry

	tasksCompleted   *prometheus.CounterVec
	tasksFailed      *prometheus.CounterVec
	gateOutcomes     *prometheus.CounterVec
	cycleResets      *prometheus.CounterVec
	activeWorkers    prometheus.Gauge
	phaseTransitions *prometheus.CounterVec
}

// New builds a Registry with all orchestrator collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_tasks_completed_total",
			Help: "Tasks that passed their regression gate, by tree id.",
		}, []string{"tree_id"}),
		tasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_tasks_failed_total",
			Help: "Tasks whose worker run or gate submission failed, by tree id.",
		}, []string{"tree_id"}),
		gateOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_gate_outcomes_total",
			Help: "RegressionGate submissions, by pass/fail outcome.",
		}, []string{"outcome"}),
		cycleResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_cycle_resets_total",
			Help: "CycleResetManager triggers, by trigger kind.",
		}, []string{"trigger"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_active_workers",
			Help: "Worker executions currently in flight.",
		}),
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_phase_transitions_total",
			Help: "ContinuousDevOrchestrator phase transitions, by destination phase.",
		}, []string{"phase"}),
	}

	reg.MustRegister(r.tasksCompleted, r.tasksFailed, r.gateOutcomes, r.cycleResets, r.activeWorkers, r.phaseTransitions)
	return r
}

// Handler returns an http.Handler serving this registry's metrics in the
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Subscribe wires Registry's collectors to bus, translating the
// orchestrator's event stream (spec.md §9) into metric increments. Returns
// an unsubscribe func, mirroring eventbus.Bus.Subscribe.
func (r *Registry) Subscribe(bus eventbus.Bus) func() {
	return bus.Subscribe(func(ev eventbus.Event) {
		switch ev.Name {
		case "task_started":
			r.activeWorkers.Inc()
		case "task_completed":
			r.tasksCompleted.WithLabelValues(stringField(ev.Payload, "treeId")).Inc()
			r.activeWorkers.Dec()
		case "task_failed":
			r.tasksFailed.WithLabelValues(stringField(ev.Payload, "treeId")).Inc()
			r.activeWorkers.Dec()
		case "gate_passed":
			r.gateOutcomes.WithLabelValues("passed").Inc()
		case "gate_failed":
			r.gateOutcomes.WithLabelValues("failed").Inc()
		case "phase_changed":
			r.phaseTransitions.WithLabelValues(stringField(ev.Payload, "phase")).Inc()
		case "cycle_reset_triggered":
			r.cycleResets.WithLabelValues(stringField(ev.Payload, "trigger")).Inc()
		}
	})
}

func stringField(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return "unknown"
	}
	s, ok := v.(string)
	if !ok {
		return "unknown"
	}
	return s
}
