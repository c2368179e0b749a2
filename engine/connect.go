//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package engine

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/dsl"
	"github.com/bassosimone/safeconn"
)

// connector dials connections with structured logging.
//
// The returned connections are observed (see [observeConn]) and closed
// when the context passed to dial is done (see [watchCancel]).
type connector struct {
	// Dialer is the [Dialer] to use.
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

func newConnector(cfg *Config, logger SLogger) *connector {
	return &connector{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// dial connects to address using the given network ("tcp" or "udp").
//
// Returns either a valid [net.Conn] or an error, never both.
func (c *connector) dial(ctx context.Context, network string, address netip.AddrPort) (net.Conn, error) {
	t0 := c.TimeNow()
	deadline, _ := ctx.Deadline()
	c.logConnectStart(network, address.String(), t0, deadline)
	conn, err := c.Dialer.DialContext(ctx, network, address.String())
	c.logConnectDone(network, address.String(), t0, deadline, conn, err)
	if err != nil {
		return nil, err
	}
	observer := &connObserver{ErrClassifier: c.ErrClassifier, Logger: c.Logger, TimeNow: c.TimeNow}
	return watchCancel(ctx, observer.observe(conn)), nil
}

func (c *connector) logConnectStart(network, address string, t0 time.Time, deadline time.Time) {
	c.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (c *connector) logConnectDone(
	network, address string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	c.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", c.TimeNow()),
	)
}

// tcpConnectFunc implements [dsl.StageTCPConnect].
type tcpConnectFunc struct {
	cfg *Config
}

func newTCPConnectFunc(rtx *Runtime, _ *dsl.NoArguments) (Func[*Endpoint, *TCPConnection], error) {
	return &tcpConnectFunc{cfg: rtx.Config()}, nil
}

// Call implements [Func].
func (op *tcpConnectFunc) Call(ctx context.Context, epnt *Endpoint) (*TCPConnection, error) {
	address, err := netip.ParseAddrPort(epnt.Address)
	if err != nil {
		return nil, err
	}
	conn, err := newConnector(op.cfg, epnt.logger).dial(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPConnection{Conn: conn, Endpoint: epnt}, nil
}
