//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/httpslog/httpslog.go
//

package engine

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bassosimone/dsl"
	"github.com/bassosimone/safeconn"
	"github.com/bassosimone/sud"
	"golang.org/x/net/http2"
)

// HTTPConnection is an HTTP transport bound to a single connection.
//
// This is the result of [dsl.StageHTTPConnectionTLS]. The next stage owns
// the connection and must call [HTTPConnection.Close] when done.
//
// HTTPConnection performs round trips with structured logging and transparent
// body observation: httpRoundTripStart/httpRoundTripDone events are emitted
// around each round trip and httpBodyStreamStart/httpBodyStreamDone events
// are emitted while reading the response body.
type HTTPConnection struct {
	// Endpoint is the endpoint we're connected to.
	Endpoint *Endpoint

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time

	// conn is the underlying connection.
	conn net.Conn

	// txp is the HTTP transport.
	txp http.RoundTripper

	// closeIdleFunc closes idle connections in the transport.
	closeIdleFunc func()
}

// RoundTrip implements [http.RoundTripper].
func (hc *HTTPConnection) RoundTrip(req *http.Request) (*http.Response, error) {
	t0 := hc.TimeNow()
	deadline, _ := req.Context().Deadline()
	hc.logRoundTripStart(req, t0, deadline)

	resp, err := hc.txp.RoundTrip(req)

	hc.logRoundTripDone(req, t0, deadline, resp, err)
	if err != nil {
		return nil, err
	}

	resp.Body = newObservedBody(hc, resp.Body)
	return resp, nil
}

// Close cleans up the transport and closes the underlying connection.
func (hc *HTTPConnection) Close() error {
	hc.closeIdleFunc()
	return hc.conn.Close()
}

// Conn returns the underlying [net.Conn].
func (hc *HTTPConnection) Conn() net.Conn {
	return hc.conn
}

func (hc *HTTPConnection) logRoundTripStart(req *http.Request, t0 time.Time, deadline time.Time) {
	hc.Logger.Info(
		"httpRoundTripStart",
		slog.Time("deadline", deadline),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.String("localAddr", safeconn.LocalAddr(hc.conn)),
		slog.String("protocol", safeconn.Network(hc.conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(hc.conn)),
		slog.Time("t", t0),
	)
}

func (hc *HTTPConnection) logRoundTripDone(req *http.Request,
	t0 time.Time, deadline time.Time, resp *http.Response, err error) {
	var (
		statusCode int
		headers    http.Header
	)
	if resp != nil {
		statusCode = resp.StatusCode
		headers = resp.Header
	}
	hc.Logger.Info(
		"httpRoundTripDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", hc.ErrClassifier.Classify(err)),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.Any("httpResponseHeaders", headers),
		slog.Int("httpResponseStatusCode", statusCode),
		slog.String("localAddr", safeconn.LocalAddr(hc.conn)),
		slog.String("protocol", safeconn.Network(hc.conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(hc.conn)),
		slog.Time("t0", t0),
		slog.Time("t", hc.TimeNow()),
	)
}

// httpConnectionTLSFunc implements [dsl.StageHTTPConnectionTLS].
type httpConnectionTLSFunc struct {
	cfg *Config
}

func newHTTPConnectionTLSFunc(rtx *Runtime, _ *dsl.NoArguments) (Func[*TLSConnection, *HTTPConnection], error) {
	return &httpConnectionTLSFunc{cfg: rtx.Config()}, nil
}

// Call implements [Func].
//
// The transport is HTTP/2 when ALPN negotiated "h2" and HTTP/1.1 otherwise.
func (op *httpConnectionTLSFunc) Call(ctx context.Context, tlsConn *TLSConnection) (*HTTPConnection, error) {
	conn := tlsConn.Conn
	alpn := conn.ConnectionState().NegotiatedProtocol

	// the single use dialer returns conn once and then fails
	dialer := sud.NewSingleUseDialer(conn)

	var (
		txp           http.RoundTripper
		closeIdleFunc func()
	)
	switch alpn {
	case "h2":
		h2txp := &http2.Transport{
			DialTLSContext:     dialer.DialTLSContext,
			DisableCompression: false,
		}
		txp, closeIdleFunc = h2txp, h2txp.CloseIdleConnections

	default:
		h1txp := &http.Transport{
			DialContext:        dialer.DialContext,
			DialTLSContext:     dialer.DialContext,
			DisableKeepAlives:  true,
			DisableCompression: false,
		}
		txp, closeIdleFunc = h1txp, h1txp.CloseIdleConnections
	}

	hc := &HTTPConnection{
		Endpoint:      tlsConn.Endpoint,
		ErrClassifier: op.cfg.ErrClassifier,
		Logger:        tlsConn.Endpoint.logger,
		TimeNow:       op.cfg.TimeNow,
		conn:          conn,
		txp:           txp,
		closeIdleFunc: closeIdleFunc,
	}
	return hc, nil
}
