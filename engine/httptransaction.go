// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/bassosimone/dsl"
)

// httpTransactionFunc implements [dsl.StageHTTPTransaction].
//
// The transaction is a GET of the "/" resource of the endpoint domain
// (or of the endpoint address when there is no domain).
type httpTransactionFunc struct {
	cfg *Config
}

func newHTTPTransactionFunc(
	rtx *Runtime, _ *dsl.HTTPTransactionArguments) (Func[*HTTPConnection, *HTTPResponse], error) {
	return &httpTransactionFunc{cfg: rtx.Config()}, nil
}

// Call implements [Func].
func (op *httpTransactionFunc) Call(ctx context.Context, hc *HTTPConnection) (*HTTPResponse, error) {
	resp, err := op.do(ctx, hc)
	if err != nil {
		hc.Close()
		return nil, err
	}
	return resp, nil
}

func (op *httpTransactionFunc) do(ctx context.Context, hc *HTTPConnection) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", op.url(hc.Endpoint).String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US;q=0.8,en;q=0.5")
	req.Header.Set("User-Agent", op.cfg.HTTPUserAgent)

	resp, err := hc.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	count, err := io.Copy(io.Discard, io.LimitReader(resp.Body, op.cfg.HTTPMaxBodySize))
	if err != nil {
		return nil, err
	}

	out := &HTTPResponse{
		Connection: hc,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		BodyLength: count,
	}
	return out, nil
}

func (op *httpTransactionFunc) url(epnt *Endpoint) *url.URL {
	host := epnt.Domain
	if host == "" {
		host = epnt.Address
	}
	return &url.URL{Scheme: "https", Host: host, Path: "/"}
}
