// SPDX-License-Identifier: GPL-3.0-or-later

package script

import (
	"fmt"
	"math"

	"github.com/bassosimone/dsl"
)

// builder builds a leaf stage from its options.
type builder func(options dsl.Options) (*dsl.Stage, error)

// builders contains the builders of the leaf stages.
var builders = map[dsl.StageName]builder{
	dsl.StageDiscard:              noOptions(dsl.Discard),
	dsl.StageDNSLookupGetaddrinfo: noOptions(dsl.DNSLookupGetaddrinfo),
	dsl.StageDNSLookupTCP:         dnsServerBuilder(dsl.DNSLookupTCP),
	dsl.StageDNSLookupUDP:         dnsServerBuilder(dsl.DNSLookupUDP),
	dsl.StageDomainName:           buildDomainName,
	dsl.StageHTTPConnectionTLS:    noOptions(dsl.HTTPConnectionTLS),
	dsl.StageHTTPTransaction:      buildHTTPTransaction,
	dsl.StageMakeEndpointsForPort: buildMakeEndpointsForPort,
	dsl.StageNewEndpoint:          buildNewEndpoint,
	dsl.StageTCPConnect:           noOptions(dsl.TCPConnect),
	dsl.StageTLSHandshake:         dsl.TLSHandshake,
}

func noOptions(fx func() *dsl.Stage) builder {
	return func(options dsl.Options) (*dsl.Stage, error) {
		return fx(), nil
	}
}

func dnsServerBuilder(fx func(endpoint string) (*dsl.Stage, error)) builder {
	return func(options dsl.Options) (*dsl.Stage, error) {
		var args dsl.DNSLookupServerArguments
		if err := decode("DNSLookupServer", options, &args); err != nil {
			return nil, err
		}
		return fx(args.Endpoint)
	}
}

func buildDomainName(options dsl.Options) (*dsl.Stage, error) {
	var args dsl.DomainNameArguments
	if err := decode("DomainName", options, &args); err != nil {
		return nil, err
	}
	return dsl.DomainName(args.Domain)
}

func buildHTTPTransaction(options dsl.Options) (*dsl.Stage, error) {
	return dsl.HTTPTransaction(options), nil
}

func buildMakeEndpointsForPort(options dsl.Options) (*dsl.Stage, error) {
	var args struct {
		Port int64 `mapstructure:"port"`
	}
	if err := decode("MakeEndpointsForPort", options, &args); err != nil {
		return nil, err
	}
	if args.Port < 0 || args.Port > math.MaxUint16 {
		return nil, &dsl.InvalidArgumentError{
			Op:     "MakeEndpointsForPort",
			Reason: fmt.Sprintf("port out of range: %d", args.Port),
		}
	}
	return dsl.MakeEndpointsForPort(uint16(args.Port))
}

func buildNewEndpoint(options dsl.Options) (*dsl.Stage, error) {
	var args dsl.NewEndpointArguments
	if err := decode("NewEndpoint", options, &args); err != nil {
		return nil, err
	}
	return dsl.NewEndpoint(args.Endpoint, options)
}
