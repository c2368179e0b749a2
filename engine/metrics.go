// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"fmt"

	"github.com/bassosimone/dsl"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the successes and failures of each stage.
//
// Counters live in a private [*prometheus.Registry] so that concurrent
// runs do not interfere with each other. Construct using [NewMetrics].
type Metrics struct {
	registry *prometheus.Registry
	stages   *prometheus.CounterVec
}

// NewMetrics creates a new [*Metrics] instance.
func NewMetrics() *Metrics {
	stages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dsl",
		Name:      "stage_results_total",
		Help:      "Number of completed stages by stage name and result.",
	}, []string{"stage", "result"})
	registry := prometheus.NewRegistry()
	registry.MustRegister(stages)
	return &Metrics{registry: registry, stages: stages}
}

// Success records that the given stage succeeded.
func (m *Metrics) Success(stage dsl.StageName) {
	m.stages.WithLabelValues(string(stage), "success").Inc()
}

// Error records that the given stage failed.
func (m *Metrics) Error(stage dsl.StageName) {
	m.stages.WithLabelValues(string(stage), "error").Inc()
}

// Snapshot returns the current value of the counters as a map
// whose keys are "<stage>.<result>" (e.g., "tcp_connect.success").
func (m *Metrics) Snapshot() map[string]int64 {
	out := map[string]int64{}
	families, err := m.registry.Gather()
	if err != nil {
		return out
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var stage, result string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "stage":
					stage = label.GetValue()
				case "result":
					result = label.GetValue()
				}
			}
			key := fmt.Sprintf("%s.%s", stage, result)
			out[key] = int64(metric.GetCounter().GetValue())
		}
	}
	return out
}
