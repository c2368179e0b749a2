// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bassosimone/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// http_transaction fetches the root resource of the endpoint domain.
func TestHTTPTransactionFunc(t *testing.T) {
	cfg := NewConfig()
	cfg.HTTPMaxBodySize = 4
	rtx := newTestRuntime(cfg)

	var gotReq *http.Request
	hc, closeCount := newTestHTTPConnection(rtx, funcRoundTripper(func(req *http.Request) (*http.Response, error) {
		gotReq = req
		return &http.Response{
			StatusCode: 204,
			Header:     http.Header{"Server": []string{"mock"}},
			Body:       io.NopCloser(strings.NewReader("0123456789")),
		}, nil
	}))

	fn, err := newHTTPTransactionFunc(rtx, &dsl.HTTPTransactionArguments{})
	require.NoError(t, err)

	resp, err := fn.Call(context.Background(), hc)

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, "mock", resp.Headers.Get("Server"))
	assert.Equal(t, int64(4), resp.BodyLength)
	assert.Same(t, hc, resp.Connection)

	require.NotNil(t, gotReq)
	assert.Equal(t, "GET", gotReq.Method)
	assert.Equal(t, "https://example.org/", gotReq.URL.String())
	assert.Equal(t, DefaultHTTPUserAgent, gotReq.Header.Get("User-Agent"))

	assert.Equal(t, 0, *closeCount)
	require.NoError(t, resp.Close())
	assert.Equal(t, 1, *closeCount)
}

// http_transaction uses the endpoint address when there is no domain.
func TestHTTPTransactionFuncWithoutDomain(t *testing.T) {
	rtx := newTestRuntime(NewConfig())
	var gotURL string
	hc, _ := newTestHTTPConnection(rtx, funcRoundTripper(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}, nil
	}))
	hc.Endpoint.Domain = ""

	fn, err := newHTTPTransactionFunc(rtx, &dsl.HTTPTransactionArguments{})
	require.NoError(t, err)

	_, err = fn.Call(context.Background(), hc)
	require.NoError(t, err)
	assert.Equal(t, "https://93.184.216.34:443/", gotURL)
}

// http_transaction closes the connection on failure.
func TestHTTPTransactionFuncError(t *testing.T) {
	wantErr := errors.New("round trip failed")
	rtx := newTestRuntime(NewConfig())
	hc, closeCount := newTestHTTPConnection(rtx, funcRoundTripper(func(req *http.Request) (*http.Response, error) {
		return nil, wantErr
	}))

	fn, err := newHTTPTransactionFunc(rtx, &dsl.HTTPTransactionArguments{})
	require.NoError(t, err)

	resp, err := fn.Call(context.Background(), hc)

	require.ErrorIs(t, err, wantErr)
	assert.Nil(t, resp)
	assert.Equal(t, 1, *closeCount)
}
