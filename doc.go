// SPDX-License-Identifier: GPL-3.0-or-later

// Package dsl builds network measurement pipelines as data.
//
// # Core Abstraction
//
// Rather than performing network operations, the functions in this package
// build an abstract syntax tree (AST) of [*Stage] values describing what to
// measure. An [Engine] interprets the AST and performs the operations. The
// [github.com/bassosimone/dsl/engine] package contains a reference engine.
//
// A [*Stage] has a name (see [StageName]), a set of arguments that is always
// fully populated, and a fixed number of children depending on its name.
// Stages are immutable and safe to share between goroutines.
//
// # Building Pipelines
//
// Stage constructors:
//   - [DomainName]: produces a domain name
//   - [DNSLookupGetaddrinfo]: resolves a domain using getaddrinfo
//   - [DNSLookupUDP], [DNSLookupTCP]: resolve a domain using a DNS server
//   - [MakeEndpointsForPort]: converts resolved addresses into endpoints
//   - [NewEndpoint]: produces a single endpoint
//   - [TCPConnect]: connects to an endpoint
//   - [TLSHandshake]: performs a TLS handshake (configurable via [Options])
//   - [HTTPConnectionTLS]: creates an HTTP connection over TLS
//   - [HTTPTransaction]: performs an HTTP transaction
//   - [Discard]: drops its input
//
// Composition:
//   - [Compose]: chains two or more stages, right associatively
//   - [NewEndpointPipeline]: runs a stage once per endpoint
//
// For example:
//
//	pipeline, err := dsl.Compose(
//		domain,                        // dsl.DomainName("example.org")
//		dsl.DNSLookupGetaddrinfo(),
//		endpoints,                     // dsl.MakeEndpointsForPort(443)
//		perEndpoint,                   // dsl.NewEndpointPipeline(...)
//	)
//
// # Running Pipelines
//
// Use [Run] to hand the AST to an [Engine] along with a reference time
// used by the engine as the zero of relative timings. The engine result
// and failure are returned unchanged.
//
// # Errors
//
// Constructors, [Compose] and [Run] validate their arguments eagerly
// and fail with an error matching [ErrInvalidArgument] (see [*InvalidArgumentError]),
// so an invalid tree is never built nor submitted.
package dsl
