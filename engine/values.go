// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"io"
	"net"
	"net/http"
)

// Unit is a type not containing any value (analogous to an
// explicit `void` type in C and C++).
//
// The AST root receives Unit in input, and [dsl.StageDiscard] returns it.
type Unit struct{}

// DNSLookupResult is the result of a DNS lookup stage.
type DNSLookupResult struct {
	// Domain is the domain that we resolved.
	Domain string

	// Addresses contains the resolved IP addresses.
	Addresses []string
}

// Endpoint is a network endpoint to measure.
type Endpoint struct {
	// Address is the endpoint address (e.g., "93.184.216.34:443").
	Address string

	// Domain is the domain associated with the endpoint, if any.
	Domain string

	// logger is the logger of the span measuring this endpoint.
	logger SLogger
}

// withLogger returns a copy of the endpoint using the given logger.
func (e *Endpoint) withLogger(logger SLogger) *Endpoint {
	return &Endpoint{Address: e.Address, Domain: e.Domain, logger: logger}
}

// TCPConnection is the result of [dsl.StageTCPConnect].
//
// The next stage owns the connection.
type TCPConnection struct {
	Conn     net.Conn
	Endpoint *Endpoint
}

// Close closes the underlying connection.
func (c *TCPConnection) Close() error {
	return c.Conn.Close()
}

// TLSConnection is the result of [dsl.StageTLSHandshake].
//
// The next stage owns the connection.
type TLSConnection struct {
	Conn     TLSConn
	Endpoint *Endpoint
}

// Close closes the underlying connection.
func (c *TLSConnection) Close() error {
	return c.Conn.Close()
}

// HTTPResponse is the result of [dsl.StageHTTPTransaction].
//
// The response body has already been read and closed. The response
// owns the connection, which the next stage should close.
type HTTPResponse struct {
	// Connection is the connection used for the transaction.
	Connection *HTTPConnection

	// StatusCode is the HTTP status code.
	StatusCode int

	// Headers contains the response headers.
	Headers http.Header

	// BodyLength is the number of body bytes we read.
	BodyLength int64
}

// Close closes the underlying connection.
func (r *HTTPResponse) Close() error {
	return r.Connection.Close()
}

// closeIfCloser closes value if it is an [io.Closer].
func closeIfCloser(value any) {
	if closer, ok := value.(io.Closer); ok {
		closer.Close()
	}
}
