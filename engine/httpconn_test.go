// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bassosimone/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
)

// funcRoundTripper implements http.RoundTripper using a function.
type funcRoundTripper func(*http.Request) (*http.Response, error)

func (f funcRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newTestHTTPConnection returns an [*HTTPConnection] using the given transport.
func newTestHTTPConnection(rtx *Runtime, txp http.RoundTripper) (*HTTPConnection, *int) {
	conn, closeCount := newClosableConn()
	cfg := rtx.Config()
	hc := &HTTPConnection{
		Endpoint:      newTestEndpoint(rtx, "93.184.216.34:443", "example.org"),
		ErrClassifier: cfg.ErrClassifier,
		Logger:        rtx.Logger(),
		TimeNow:       cfg.TimeNow,
		conn:          conn,
		txp:           txp,
		closeIdleFunc: func() {},
	}
	return hc, closeCount
}

// http_connection_tls selects HTTP/1.1 or HTTP/2 based on ALPN.
func TestHTTPConnectionTLSFunc(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// alpn is the negotiated protocol.
		alpn string

		// wantH2 indicates whether we expect an HTTP/2 transport.
		wantH2 bool
	}{
		{name: "h2 uses HTTP/2", alpn: "h2", wantH2: true},
		{name: "http/1.1 uses HTTP/1.1", alpn: "http/1.1", wantH2: false},
		{name: "no ALPN uses HTTP/1.1", alpn: "", wantH2: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rtx := newTestRuntime(NewConfig())
			tconn, closeCount := newTestTLSConn(tls.ConnectionState{NegotiatedProtocol: tt.alpn}, nil)
			epnt := newTestEndpoint(rtx, "93.184.216.34:443", "example.org")

			fn, err := newHTTPConnectionTLSFunc(rtx, &dsl.NoArguments{})
			require.NoError(t, err)

			hc, err := fn.Call(context.Background(), &TLSConnection{Conn: tconn, Endpoint: epnt})

			require.NoError(t, err)
			require.NotNil(t, hc)
			assert.Same(t, epnt, hc.Endpoint)
			assert.Equal(t, tconn, hc.Conn())
			_, isH2 := hc.txp.(*http2.Transport)
			assert.Equal(t, tt.wantH2, isH2)

			require.NoError(t, hc.Close())
			assert.Equal(t, 1, *closeCount)
		})
	}
}

// RoundTrip delegates to the transport and observes the response body.
func TestHTTPConnectionRoundTrip(t *testing.T) {
	logger, records := newCapturingLogger()
	cfg := NewConfig()
	cfg.Logger = logger
	rtx := newTestRuntime(cfg)

	hc, _ := newTestHTTPConnection(rtx, funcRoundTripper(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       io.NopCloser(strings.NewReader("OK")),
		}, nil
	}))

	req, err := http.NewRequest("GET", "https://example.org/", nil)
	require.NoError(t, err)

	resp, err := hc.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
	require.NoError(t, resp.Body.Close())
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, []string{
		"httpRoundTripStart",
		"httpRoundTripDone",
		"httpBodyStreamStart",
		"httpBodyStreamDone",
	}, recordMessages(*records))
	value, found := recordAttr((*records)[3], "ioBytesCount")
	require.True(t, found)
	assert.Equal(t, int64(2), value.Int64())
}

// RoundTrip propagates the transport errors.
func TestHTTPConnectionRoundTripError(t *testing.T) {
	wantErr := errors.New("round trip failed")
	rtx := newTestRuntime(NewConfig())
	hc, _ := newTestHTTPConnection(rtx, funcRoundTripper(func(req *http.Request) (*http.Response, error) {
		return nil, wantErr
	}))

	req, err := http.NewRequest("GET", "https://example.org/", nil)
	require.NoError(t, err)

	resp, err := hc.RoundTrip(req)

	require.ErrorIs(t, err, wantErr)
	assert.Nil(t, resp)
	assert.Equal(t, []string{"httpRoundTripStart", "httpRoundTripDone"}, observationMessages(rtx.Observations()))
}

// Closing the body without reading does not emit body events.
func TestObservedBodyCloseWithoutRead(t *testing.T) {
	rtx := newTestRuntime(NewConfig())
	hc, _ := newTestHTTPConnection(rtx, nil)

	body := newObservedBody(hc, io.NopCloser(strings.NewReader("OK")))
	require.NoError(t, body.Close())

	assert.Empty(t, rtx.Observations())
}

// RoundTrip passes the caller's context to the transport.
func TestHTTPConnectionRoundTripCallerTimeout(t *testing.T) {
	callerTimeout := 5 * time.Second
	rtx := newTestRuntime(NewConfig())
	hc, _ := newTestHTTPConnection(rtx, funcRoundTripper(func(req *http.Request) (*http.Response, error) {
		deadline, ok := req.Context().Deadline()
		assert.True(t, ok, "context should have deadline from caller")
		assert.True(t, time.Until(deadline) <= callerTimeout)
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), callerTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", "https://example.org/", nil)
	require.NoError(t, err)

	_, err = hc.RoundTrip(req)
	require.NoError(t, err)
}
