// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"log/slog"

	"github.com/bassosimone/dsl"
)

// dnsLookupGetaddrinfoFunc implements [dsl.StageDNSLookupGetaddrinfo].
type dnsLookupGetaddrinfoFunc struct {
	cfg    *Config
	logger SLogger
}

func newDNSLookupGetaddrinfoFunc(
	rtx *Runtime, _ *dsl.NoArguments) (Func[string, *DNSLookupResult], error) {
	return &dnsLookupGetaddrinfoFunc{cfg: rtx.Config(), logger: rtx.Logger()}, nil
}

// Call implements [Func].
func (op *dnsLookupGetaddrinfoFunc) Call(ctx context.Context, domain string) (*DNSLookupResult, error) {
	t0 := op.cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logger.Info(
		"dnsLookupStart",
		slog.Time("deadline", deadline),
		slog.String("dnsLookupDomain", domain),
		slog.String("serverProtocol", "getaddrinfo"),
		slog.Time("t", t0),
	)

	addrs, err := op.cfg.Resolver.LookupHost(ctx, domain)

	op.logger.Info(
		"dnsLookupDone",
		slog.Time("deadline", deadline),
		slog.Any("dnsLookupAddrs", addrs),
		slog.String("dnsLookupDomain", domain),
		slog.Any("err", err),
		slog.String("errClass", op.cfg.ErrClassifier.Classify(err)),
		slog.String("serverProtocol", "getaddrinfo"),
		slog.Time("t0", t0),
		slog.Time("t", op.cfg.TimeNow()),
	)

	if err != nil {
		return nil, err
	}
	return &DNSLookupResult{Domain: domain, Addresses: addrs}, nil
}
