// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"strconv"

	"github.com/bassosimone/dsl"
)

func newDomainNameFunc(rtx *Runtime, args *dsl.DomainNameArguments) (Func[Unit, string], error) {
	if args.Domain == "" {
		return nil, errors.New("missing domain")
	}
	domain := args.Domain
	return FuncAdapter[Unit, string](func(ctx context.Context, _ Unit) (string, error) {
		return domain, nil
	}), nil
}

func newNewEndpointFunc(rtx *Runtime, args *dsl.NewEndpointArguments) (Func[Unit, *Endpoint], error) {
	if _, err := netip.ParseAddrPort(args.Endpoint); err != nil {
		return nil, err
	}
	epnt := &Endpoint{Address: args.Endpoint, Domain: args.Domain, logger: rtx.Logger()}
	return FuncAdapter[Unit, *Endpoint](func(ctx context.Context, _ Unit) (*Endpoint, error) {
		return epnt.withLogger(epnt.logger), nil
	}), nil
}

func newMakeEndpointsForPortFunc(
	rtx *Runtime, args *dsl.MakeEndpointsForPortArguments) (Func[*DNSLookupResult, []*Endpoint], error) {
	if args.Port == 0 {
		return nil, errors.New("missing port")
	}
	port := strconv.Itoa(int(args.Port))
	return FuncAdapter[*DNSLookupResult, []*Endpoint](
		func(ctx context.Context, result *DNSLookupResult) ([]*Endpoint, error) {
			endpoints := []*Endpoint{}
			for _, addr := range result.Addresses {
				endpoints = append(endpoints, &Endpoint{
					Address: net.JoinHostPort(addr, port),
					Domain:  result.Domain,
					logger:  rtx.Logger(),
				})
			}
			rtx.Logger().Info(
				"makeEndpointsDone",
				slog.String("domain", result.Domain),
				slog.Any("endpoints", endpointAddresses(endpoints)),
				slog.Time("t", rtx.Config().TimeNow()),
			)
			return endpoints, nil
		}), nil
}

func endpointAddresses(endpoints []*Endpoint) []string {
	out := []string{}
	for _, epnt := range endpoints {
		out = append(out, epnt.Address)
	}
	return out
}

func newDiscardFunc(rtx *Runtime, _ *dsl.NoArguments) (Func[any, Unit], error) {
	return FuncAdapter[any, Unit](func(ctx context.Context, input any) (Unit, error) {
		closeIfCloser(input)
		return Unit{}, nil
	}), nil
}
