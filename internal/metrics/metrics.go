// Package metrics records per-run planning counters in a private Prometheus
// registry. The CLI can dump them in the text exposition format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters for a planning run.
type Metrics struct {
	registry *prometheus.Registry

	ModulesResolved  *prometheus.CounterVec
	ActionsFlattened *prometheus.CounterVec
	ConflictsTotal   *prometheus.CounterVec
	MergesTotal      *prometheus.CounterVec
	WarningsTotal    *prometheus.CounterVec
	PlanActions      prometheus.Gauge
}

// New creates a metrics collector bound to its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ModulesResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_modules_resolved_total",
				Help: "Modules resolved by the locator, by runtime kind",
			},
			[]string{"runtime"},
		),
		ActionsFlattened: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_actions_flattened_total",
				Help: "Actions emitted by the flattener, by action type",
			},
			[]string{"type"},
		),
		ConflictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_conflicts_resolved_total",
				Help: "Conflict groups resolved, by winning strategy",
			},
			[]string{"strategy"},
		),
		MergesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_merges_total",
				Help: "Modifier merges performed, by modifier kind",
			},
			[]string{"modifier"},
		),
		WarningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scaffold_plan_warnings_total",
				Help: "Warnings attached to emitted plans, by warning code",
			},
			[]string{"code"},
		),
		PlanActions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scaffold_plan_actions",
				Help: "Number of actions in the last emitted plan",
			},
		),
	}
}

// The Record and Set methods are no-ops on a nil *Metrics.

// RecordModule records a resolved module.
func (m *Metrics) RecordModule(runtime string) {
	if m == nil {
		return
	}
	m.ModulesResolved.WithLabelValues(runtime).Inc()
}

// RecordAction records a flattened action.
func (m *Metrics) RecordAction(actionType string) {
	if m == nil {
		return
	}
	m.ActionsFlattened.WithLabelValues(actionType).Inc()
}

// RecordConflict records a resolved conflict group.
func (m *Metrics) RecordConflict(strategy string) {
	if m == nil {
		return
	}
	m.ConflictsTotal.WithLabelValues(strategy).Inc()
}

// RecordMerge records a modifier merge.
func (m *Metrics) RecordMerge(modifier string) {
	if m == nil {
		return
	}
	m.MergesTotal.WithLabelValues(modifier).Inc()
}

// RecordWarning records a plan warning.
func (m *Metrics) RecordWarning(code string) {
	if m == nil {
		return
	}
	m.WarningsTotal.WithLabelValues(code).Inc()
}

// SetPlanActions sets the size of the emitted plan.
func (m *Metrics) SetPlanActions(n int) {
	if m == nil {
		return
	}
	m.PlanActions.Set(float64(n))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the text exposition of all metrics to path.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
