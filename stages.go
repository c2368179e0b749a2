// SPDX-License-Identifier: GPL-3.0-or-later

package dsl

import (
	"github.com/mitchellh/mapstructure"
)

// Options is a loosely-typed options object for stage constructors.
//
// Each constructor accepting Options decodes the keys it recognizes into
// the corresponding arguments struct (e.g., [TLSHandshakeArguments]) and
// fills the missing ones with their defaults. A nil Options means "use all
// the defaults". Unrecognized keys are ignored, so that scripts written for
// newer versions of this package still build. A recognized key with a value
// of the wrong type causes an [ErrInvalidArgument] error.
type Options map[string]any

// decodeOptions decodes options into the given arguments pointer.
func decodeOptions(op string, options Options, out any) error {
	if options == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      false,
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: false,
		ZeroFields:       false,
	})
	if err != nil {
		return newInvalidArgumentError(op, "%s", err.Error())
	}
	if err := decoder.Decode(map[string]any(options)); err != nil {
		return newInvalidArgumentError(op, "%s", err.Error())
	}
	return nil
}

// Discard returns a stage that drops its input, closing it when needed.
func Discard() *Stage {
	return newStage(StageDiscard, NoArguments{})
}

// DNSLookupGetaddrinfo returns a stage that resolves the domain it
// receives in input using getaddrinfo.
func DNSLookupGetaddrinfo() *Stage {
	return newStage(StageDNSLookupGetaddrinfo, NoArguments{})
}

// DNSLookupUDP returns a stage that resolves the domain it receives in
// input using the DNS-over-UDP server at the given endpoint (e.g., "8.8.8.8:53").
func DNSLookupUDP(endpoint string) (*Stage, error) {
	if endpoint == "" {
		return nil, newInvalidArgumentError("DNSLookupUDP", "missing server endpoint")
	}
	return newStage(StageDNSLookupUDP, DNSLookupServerArguments{Endpoint: endpoint}), nil
}

// DNSLookupTCP is like [DNSLookupUDP] but uses DNS-over-TCP.
func DNSLookupTCP(endpoint string) (*Stage, error) {
	if endpoint == "" {
		return nil, newInvalidArgumentError("DNSLookupTCP", "missing server endpoint")
	}
	return newStage(StageDNSLookupTCP, DNSLookupServerArguments{Endpoint: endpoint}), nil
}

// DomainName returns a stage producing the given domain name.
func DomainName(domain string) (*Stage, error) {
	if domain == "" {
		return nil, newInvalidArgumentError("DomainName", "missing domain")
	}
	return newStage(StageDomainName, DomainNameArguments{Domain: domain}), nil
}

// HTTPConnectionTLS returns a stage that creates an HTTP connection on
// top of the TLS connection it receives in input.
func HTTPConnectionTLS() *Stage {
	return newStage(StageHTTPConnectionTLS, NoArguments{})
}

// HTTPTransaction returns a stage that performs an HTTP transaction using
// the HTTP connection it receives in input.
//
// The options are currently ignored.
//
// TODO(bassosimone): support the method, URL path, and headers options.
func HTTPTransaction(options Options) *Stage {
	return newStage(StageHTTPTransaction, HTTPTransactionArguments{})
}

// MakeEndpointsForPort returns a stage that converts the addresses
// resolved by a DNS lookup into endpoints using the given port.
func MakeEndpointsForPort(port uint16) (*Stage, error) {
	if port == 0 {
		return nil, newInvalidArgumentError("MakeEndpointsForPort", "missing port")
	}
	return newStage(StageMakeEndpointsForPort, MakeEndpointsForPortArguments{Port: port}), nil
}

// NewEndpoint returns a stage producing the endpoint with the given
// address (e.g., "93.184.216.34:443").
//
// The recognized options are:
//
//   - "domain" (string, default ""): the domain associated with the endpoint.
func NewEndpoint(address string, options Options) (*Stage, error) {
	if address == "" {
		return nil, newInvalidArgumentError("NewEndpoint", "missing endpoint address")
	}
	var args NewEndpointArguments
	if err := decodeOptions("NewEndpoint", options, &args); err != nil {
		return nil, err
	}
	args.Endpoint = address
	return newStage(StageNewEndpoint, args), nil
}

// NewEndpointPipeline returns a stage that runs the given stage once
// for each endpoint it receives in input.
func NewEndpointPipeline(stage *Stage) (*Stage, error) {
	if stage == nil {
		return nil, newInvalidArgumentError("NewEndpointPipeline", "nil stage")
	}
	return newStage(StageNewEndpointPipeline, NoArguments{}, stage), nil
}

// TCPConnect returns a stage that connects to the endpoint it receives in input.
func TCPConnect() *Stage {
	return newStage(StageTCPConnect, NoArguments{})
}

// TLSHandshake returns a stage that performs a TLS handshake using the
// TCP connection it receives in input.
//
// The recognized options are:
//
//   - "alpn" ([]string, default []): the protocols to offer via ALPN;
//
//   - "skip_verify" (bool, default false): whether to skip certificate verification;
//
//   - "sni" (string, default ""): the SNI to use;
//
//   - "x509_certs" ([]string, default []): PEM-encoded root certificates.
func TLSHandshake(options Options) (*Stage, error) {
	var args TLSHandshakeArguments
	if err := decodeOptions("TLSHandshake", options, &args); err != nil {
		return nil, err
	}
	if args.ALPN == nil {
		args.ALPN = []string{}
	}
	if args.X509Certs == nil {
		args.X509Certs = []string{}
	}
	return newStage(StageTLSHandshake, args), nil
}
