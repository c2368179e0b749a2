// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/dnsoverstream"
	"github.com/bassosimone/dsl"
	"github.com/bassosimone/minest"
	"github.com/bassosimone/safeconn"
	"github.com/miekg/dns"
)

// dnsExchangeLogContext holds common logging state for DNS exchanges.
//
// This type exists to consolidate the logging boilerplate shared by
// the DNS-over-UDP and DNS-over-TCP lookup stages.
type dnsExchangeLogContext struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// LocalAddr is the local address of the connection.
	LocalAddr string

	// Logger is the SLogger to use.
	Logger SLogger

	// Protocol is the network protocol (e.g., "tcp", "udp").
	Protocol string

	// RemoteAddr is the remote address of the connection.
	RemoteAddr string

	// ServerProtocol is the DNS protocol ("udp" or "tcp").
	ServerProtocol string

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

// logStart logs the start of a DNS exchange.
func (lc *dnsExchangeLogContext) logStart(t0 time.Time, deadline time.Time) {
	lc.Logger.Info(
		"dnsExchangeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.String("serverProtocol", lc.ServerProtocol),
		slog.Time("t", t0),
	)
}

// logDone logs the completion of a DNS exchange.
func (lc *dnsExchangeLogContext) logDone(t0 time.Time, deadline time.Time, err error) {
	lc.Logger.Info(
		"dnsExchangeDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", lc.ErrClassifier.Classify(err)),
		slog.String("localAddr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remoteAddr", lc.RemoteAddr),
		slog.String("serverProtocol", lc.ServerProtocol),
		slog.Time("t0", t0),
		slog.Time("t", lc.TimeNow()),
	)
}

// makeQueryObserver returns an observer function for raw DNS queries.
//
// The rqr pointer is used to capture the raw query for correlation
// with the response observer.
func (lc *dnsExchangeLogContext) makeQueryObserver(t0 time.Time, rqr *[]byte) func([]byte) {
	return func(rawQuery []byte) {
		lc.Logger.Info(
			"dnsQuery",
			slog.String("serverProtocol", lc.ServerProtocol),
			slog.Any("dnsRawQuery", rawQuery),
			slog.String("localAddr", lc.LocalAddr),
			slog.String("protocol", lc.Protocol),
			slog.String("remoteAddr", lc.RemoteAddr),
			slog.Time("t", t0),
		)
		*rqr = rawQuery
	}
}

// makeResponseObserver returns an observer function for raw DNS responses.
//
// The rqr pointer should be the same one passed to makeQueryObserver,
// allowing the response to be correlated with the original query.
func (lc *dnsExchangeLogContext) makeResponseObserver(t0 time.Time, rqr *[]byte) func([]byte) {
	return func(rawResp []byte) {
		lc.Logger.Info(
			"dnsResponse",
			slog.String("serverProtocol", lc.ServerProtocol),
			slog.Any("dnsRawQuery", *rqr),
			slog.String("localAddr", lc.LocalAddr),
			slog.String("protocol", lc.Protocol),
			slog.String("remoteAddr", lc.RemoteAddr),
			slog.Time("t0", t0),
			slog.Time("t", lc.TimeNow()),
			slog.Any("dnsRawResponse", rawResp),
		)
	}
}

// dnsLookupServerFunc implements [dsl.StageDNSLookupUDP] and [dsl.StageDNSLookupTCP].
//
// Each lookup dials a new connection to the server, sends an A query
// for the domain, and closes the connection.
type dnsLookupServerFunc struct {
	// cfg is the engine configuration.
	cfg *Config

	// logger is the [SLogger] to use.
	logger SLogger

	// network is either "udp" or "tcp".
	network string

	// server is the DNS server endpoint.
	server netip.AddrPort
}

func newDNSLookupUDPFunc(
	rtx *Runtime, args *dsl.DNSLookupServerArguments) (Func[string, *DNSLookupResult], error) {
	return newDNSLookupServerFunc(rtx, "udp", args)
}

func newDNSLookupTCPFunc(
	rtx *Runtime, args *dsl.DNSLookupServerArguments) (Func[string, *DNSLookupResult], error) {
	return newDNSLookupServerFunc(rtx, "tcp", args)
}

func newDNSLookupServerFunc(
	rtx *Runtime, network string, args *dsl.DNSLookupServerArguments) (*dnsLookupServerFunc, error) {
	server, err := netip.ParseAddrPort(args.Endpoint)
	if err != nil {
		return nil, err
	}
	op := &dnsLookupServerFunc{
		cfg:     rtx.Config(),
		logger:  rtx.Logger(),
		network: network,
		server:  server,
	}
	return op, nil
}

// Call implements [Func].
func (op *dnsLookupServerFunc) Call(ctx context.Context, domain string) (*DNSLookupResult, error) {
	t0 := op.cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logger.Info(
		"dnsLookupStart",
		slog.Time("deadline", deadline),
		slog.String("dnsLookupDomain", domain),
		slog.String("serverAddr", op.server.String()),
		slog.String("serverProtocol", op.network),
		slog.Time("t", t0),
	)

	addrs, err := op.lookup(ctx, domain)

	op.logger.Info(
		"dnsLookupDone",
		slog.Time("deadline", deadline),
		slog.Any("dnsLookupAddrs", addrs),
		slog.String("dnsLookupDomain", domain),
		slog.Any("err", err),
		slog.String("errClass", op.cfg.ErrClassifier.Classify(err)),
		slog.String("serverAddr", op.server.String()),
		slog.String("serverProtocol", op.network),
		slog.Time("t0", t0),
		slog.Time("t", op.cfg.TimeNow()),
	)

	if err != nil {
		return nil, err
	}
	return &DNSLookupResult{Domain: domain, Addresses: addrs}, nil
}

func (op *dnsLookupServerFunc) lookup(ctx context.Context, domain string) ([]string, error) {
	conn, err := newConnector(op.cfg, op.logger).dial(ctx, op.network, op.server)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := dnscodec.NewQuery(domain, dns.TypeA)
	resp, err := op.exchange(ctx, conn, query)
	if err != nil {
		return nil, err
	}
	return resp.RecordsA()
}

func (op *dnsLookupServerFunc) exchange(
	ctx context.Context, conn net.Conn, query *dnscodec.Query) (*dnscodec.Response, error) {
	t0 := op.cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	var rqr []byte
	lc := &dnsExchangeLogContext{
		ErrClassifier:  op.cfg.ErrClassifier,
		LocalAddr:      safeconn.LocalAddr(conn),
		Logger:         op.logger,
		Protocol:       safeconn.Network(conn),
		RemoteAddr:     safeconn.RemoteAddr(conn),
		ServerProtocol: op.network,
		TimeNow:        op.cfg.TimeNow,
	}

	// We already own a connection, so the transports use a dialer
	// that panics if they attempt to dial (programmer error).
	var (
		resp *dnscodec.Response
		err  error
	)
	lc.logStart(t0, deadline)
	switch op.network {
	case "udp":
		txp := minest.NewDNSOverUDPTransport(dnsUnusedDialer{}, netip.AddrPortFrom(netip.IPv4Unspecified(), 0))
		txp.ObserveRawQuery = lc.makeQueryObserver(t0, &rqr)
		txp.ObserveRawResponse = lc.makeResponseObserver(t0, &rqr)
		resp, err = txp.ExchangeWithConn(ctx, conn, query)

	default:
		streamDialer := dnsoverstream.NewStreamOpenerDialerTCP(dnsUnusedDialer{})
		txp := dnsoverstream.NewTransport(streamDialer, netip.AddrPortFrom(netip.IPv4Unspecified(), 0))
		txp.ObserveRawQuery = lc.makeQueryObserver(t0, &rqr)
		txp.ObserveRawResponse = lc.makeResponseObserver(t0, &rqr)
		resp, err = txp.ExchangeWithStreamOpener(ctx, dnsoverstream.NewTCPStreamOpener(conn), query)
	}
	lc.logDone(t0, deadline, err)
	return resp, err
}

// dnsUnusedDialer satisfies the transports' dialer argument.
//
// The lookup stages hand the transports a connection they already dialed,
// so reaching DialContext means the transport was misused.
type dnsUnusedDialer struct{}

func (dnsUnusedDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	panic("engine: DNS transport tried to dial")
}
