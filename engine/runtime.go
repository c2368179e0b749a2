// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"log/slog"
	"time"
)

// Runtime contains the state shared by the stages of a single run.
//
// Construct using [NewRuntime].
type Runtime struct {
	config       *Config
	logger       *slog.Logger
	metrics      *Metrics
	observations *observationCollector
}

// NewRuntime creates a new [*Runtime] for running an AST once.
//
// The zeroTime argument is the reference time for computing
// the elapsed time of each observation.
func NewRuntime(config *Config, zeroTime time.Time) *Runtime {
	observations := newObservationCollector(zeroTime)
	handler := &observationHandler{
		attrs:     nil,
		collector: observations,
		forward:   config.Logger,
	}
	return &Runtime{
		config:       config,
		logger:       slog.New(handler),
		metrics:      NewMetrics(),
		observations: observations,
	}
}

// Config returns the engine configuration.
func (rtx *Runtime) Config() *Config {
	return rtx.config
}

// Logger returns the logger whose Info events become observations.
func (rtx *Runtime) Logger() *slog.Logger {
	return rtx.logger
}

// Metrics returns the stage metrics.
func (rtx *Runtime) Metrics() *Metrics {
	return rtx.metrics
}

// Observations returns a copy of the observations collected so far.
func (rtx *Runtime) Observations() []Observation {
	return rtx.observations.extract()
}
