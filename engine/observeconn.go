//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/conn.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/conn.go
//

package engine

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// connObserver wraps connections to log their I/O operations.
//
// Close is logged at Info level and thus becomes an observation, while
// reads, writes, and deadline changes are logged at Debug level.
type connObserver struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

// observe returns a [net.Conn] wrapping conn and logging its operations.
func (co *connObserver) observe(conn net.Conn) net.Conn {
	return &observedConn{
		closeonce: sync.Once{},
		conn:      conn,
		laddr:     safeconn.LocalAddr(conn),
		observer:  co,
		protocol:  safeconn.Network(conn),
		raddr:     safeconn.RemoteAddr(conn),
	}
}

// observedConn observes a [net.Conn].
type observedConn struct {
	closeonce sync.Once
	conn      net.Conn
	laddr     string
	observer  *connObserver
	protocol  string
	raddr     string
}

// Close implements [net.Conn].
//
// Subsequent calls return [net.ErrClosed], consistent with Go's standard
// library behavior for closed connections.
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.observer.TimeNow()
		c.observer.Logger.Info("closeStart", c.addrs(slog.Time("t", t0))...)
		err = c.conn.Close()
		c.observer.Logger.Info("closeDone", c.addrs(
			slog.Any("err", err),
			slog.String("errClass", c.observer.ErrClassifier.Classify(err)),
			slog.Time("t0", t0),
			slog.Time("t", c.observer.TimeNow()),
		)...)
	})
	return
}

// addrs returns the given attributes followed by the connection addresses.
func (c *observedConn) addrs(attrs ...any) []any {
	return append(attrs,
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
	)
}

// LocalAddr implements [net.Conn].
func (c *observedConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr implements [net.Conn].
func (c *observedConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Read implements [net.Conn].
func (c *observedConn) Read(buf []byte) (int, error) {
	return c.io("read", buf, c.conn.Read)
}

// Write implements [net.Conn].
func (c *observedConn) Write(data []byte) (int, error) {
	return c.io("write", data, c.conn.Write)
}

// io performs and logs a read or a write.
func (c *observedConn) io(name string, buf []byte, fx func([]byte) (int, error)) (int, error) {
	t0 := c.observer.TimeNow()
	c.observer.Logger.Debug(name+"Start", c.addrs(
		slog.Int("ioBufferSize", len(buf)),
		slog.Time("t", t0),
	)...)

	count, err := fx(buf)

	c.observer.Logger.Debug(name+"Done", c.addrs(
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.observer.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", c.observer.TimeNow()),
	)...)
	return count, err
}

// SetDeadline implements [net.Conn].
func (c *observedConn) SetDeadline(t time.Time) error {
	c.logDeadline("setDeadline", t)
	return c.conn.SetDeadline(t)
}

// SetReadDeadline implements [net.Conn].
func (c *observedConn) SetReadDeadline(t time.Time) error {
	c.logDeadline("setReadDeadline", t)
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline implements [net.Conn].
func (c *observedConn) SetWriteDeadline(t time.Time) error {
	c.logDeadline("setWriteDeadline", t)
	return c.conn.SetWriteDeadline(t)
}

func (c *observedConn) logDeadline(name string, deadline time.Time) {
	c.observer.Logger.Debug(name, c.addrs(
		slog.Time("deadline", deadline),
		slog.Time("t", c.observer.TimeNow()),
	)...)
}
