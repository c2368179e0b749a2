// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// The probeip command fails before sending any request for invalid flags.
func TestProbeIPCommandErrors(t *testing.T) {
	t.Run("endpoint without port", func(t *testing.T) {
		_, _, err := executeRoot(t, "probeip", "--log-level", "info", "--endpoint", "stun.example.org")
		require.Error(t, err)
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, _, err := executeRoot(t, "probeip", "--log-level", "verbose", "--endpoint", "127.0.0.1:3478")
		require.Error(t, err)
	})

	t.Run("unexpected argument", func(t *testing.T) {
		_, _, err := executeRoot(t, "probeip", "--log-level", "info", "stun.example.org:3478")
		require.Error(t, err)
	})
}
