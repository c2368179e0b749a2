// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Observation is a structured log event collected while running.
//
// The "msg" key contains the event name (e.g., "connectDone"), the
// "level" key contains the log level, the "elapsed" key contains the
// seconds elapsed between the zero time and the event "t" attribute.
// The other keys contain the event attributes (e.g., "remoteAddr").
type Observation = map[string]any

// observationCollector accumulates observations.
//
// It is safe for concurrent use by multiple goroutines.
type observationCollector struct {
	mu       sync.Mutex
	list     []Observation
	zeroTime time.Time
}

func newObservationCollector(zeroTime time.Time) *observationCollector {
	return &observationCollector{list: []Observation{}, zeroTime: zeroTime}
}

func (oc *observationCollector) add(obs Observation) {
	oc.mu.Lock()
	oc.list = append(oc.list, obs)
	oc.mu.Unlock()
}

// extract returns a copy of the collected observations.
func (oc *observationCollector) extract() []Observation {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return append([]Observation{}, oc.list...)
}

// observationHandler is a [slog.Handler] converting records at Info
// level or above to observations and forwarding all the records to an
// [SLogger] (typically the one configured by the user).
type observationHandler struct {
	attrs     []slog.Attr
	collector *observationCollector
	forward   SLogger
}

var _ slog.Handler = &observationHandler{}

// Enabled implements [slog.Handler].
func (h *observationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle implements [slog.Handler].
func (h *observationHandler) Handle(ctx context.Context, record slog.Record) error {
	var args []any
	for _, attr := range h.attrs {
		args = append(args, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		args = append(args, attr)
		return true
	})

	switch {
	case record.Level >= slog.LevelInfo:
		h.forward.Info(record.Message, args...)
		h.collector.add(h.newObservation(record))
	default:
		h.forward.Debug(record.Message, args...)
	}
	return nil
}

func (h *observationHandler) newObservation(record slog.Record) Observation {
	obs := Observation{}
	for _, attr := range h.attrs {
		obs[attr.Key] = observationValue(attr.Value)
	}
	record.Attrs(func(attr slog.Attr) bool {
		obs[attr.Key] = observationValue(attr.Value)
		return true
	})
	obs["msg"] = record.Message
	obs["level"] = record.Level.String()
	when := record.Time
	if t, ok := obs["t"].(time.Time); ok {
		when = t // prefer the time measured by the stage
	}
	obs["elapsed"] = when.Sub(h.collector.zeroTime).Seconds()
	return obs
}

// observationValue converts a [slog.Value] to a JSON-friendly value.
func observationValue(value slog.Value) any {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindGroup:
		out := map[string]any{}
		for _, attr := range value.Group() {
			out[attr.Key] = observationValue(attr.Value)
		}
		return out

	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return err.Error()
		}
		return value.Any()

	default:
		return value.Any()
	}
}

// WithAttrs implements [slog.Handler].
func (h *observationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &observationHandler{
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
		collector: h.collector,
		forward:   h.forward,
	}
}

// WithGroup implements [slog.Handler].
//
// Groups are not used by the engine, so we flatten them.
func (h *observationHandler) WithGroup(name string) slog.Handler {
	return h
}
