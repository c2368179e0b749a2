// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"net"
)

// watchCancel arranges for the connection to be closed when the context
// is done (cancelled or deadline exceeded), so that a cancelled run stops
// promptly instead of waiting for I/O timeouts.
//
// Closing the returned connection unregisters the context watcher and
// closes the underlying connection, so no goroutine leaks even if the
// context is never cancelled.
func watchCancel(ctx context.Context, conn net.Conn) net.Conn {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}
}

// cancelWatchedConn wraps a [net.Conn] with a context cancellation watcher.
type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying connection.
func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
