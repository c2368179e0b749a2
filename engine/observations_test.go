// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Info records become observations and all records are forwarded.
func TestRuntimeLoggerObservations(t *testing.T) {
	logger, records := newCapturingLogger()
	cfg := NewConfig()
	cfg.Logger = logger
	rtx := newTestRuntime(cfg)

	t0 := testZeroTime.Add(1500 * time.Millisecond)
	rtx.Logger().Info(
		"connectDone",
		slog.Any("err", errors.New("connection refused")),
		slog.String("remoteAddr", "93.184.216.34:443"),
		slog.Time("t", t0),
	)
	rtx.Logger().Debug("readStart", slog.Int("ioBufferSize", 1024))

	assert.Equal(t, []string{"connectDone", "readStart"}, recordMessages(*records))
	assert.Equal(t, slog.LevelInfo, (*records)[0].Level)
	assert.Equal(t, slog.LevelDebug, (*records)[1].Level)

	observations := rtx.Observations()
	require.Len(t, observations, 1)
	obs := observations[0]
	assert.Len(t, obs, 6)
	assert.Equal(t, "connectDone", obs["msg"])
	assert.Equal(t, "INFO", obs["level"])
	assert.Equal(t, 1.5, obs["elapsed"])
	assert.Equal(t, "connection refused", obs["err"])
	assert.Equal(t, "93.184.216.34:443", obs["remoteAddr"])
	assert.True(t, t0.Equal(obs["t"].(time.Time)))
}

// Attributes added with With are included in observations and forwarded records.
func TestRuntimeLoggerWithAttrs(t *testing.T) {
	logger, records := newCapturingLogger()
	cfg := NewConfig()
	cfg.Logger = logger
	rtx := newTestRuntime(cfg)

	spanLogger := rtx.Logger().With(slog.String("spanID", "0123"))
	spanLogger.Info("endpointPipelineStart", slog.Time("t", testZeroTime))

	observations := rtx.Observations()
	require.Len(t, observations, 1)
	assert.Equal(t, "0123", observations[0]["spanID"])
	assert.Equal(t, 0.0, observations[0]["elapsed"])

	require.Len(t, *records, 1)
	value, found := recordAttr((*records)[0], "spanID")
	require.True(t, found)
	assert.Equal(t, "0123", value.String())
}

// Groups are flattened into nested maps.
func TestRuntimeLoggerGroups(t *testing.T) {
	rtx := newTestRuntime(NewConfig())

	rtx.Logger().Info("event", slog.Group("tls", slog.String("version", "TLSv1.3")))

	observations := rtx.Observations()
	require.Len(t, observations, 1)
	assert.Equal(t, map[string]any{"version": "TLSv1.3"}, observations[0]["tls"])
}

// Observations returns a copy of the collected observations.
func TestRuntimeObservationsCopy(t *testing.T) {
	rtx := newTestRuntime(NewConfig())
	rtx.Logger().Info("event")

	first := rtx.Observations()
	first[0] = Observation{"msg": "tampered"}

	assert.Equal(t, "event", rtx.Observations()[0]["msg"])
}
