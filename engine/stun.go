// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/pion/stun"
)

// DefaultSTUNEndpoint is the STUN server used by default for discovering the probe IP.
const DefaultSTUNEndpoint = "stun.l.google.com:19302"

// ErrNoSTUNServerAddress indicates that the STUN server domain does not
// resolve to any address of the requested family.
var ErrNoSTUNServerAddress = errors.New("engine: no STUN server address for the requested family")

// ProbeIPLookup discovers the public IP address of the probe by sending
// STUN binding requests over UDP.
//
// The lookup resolves the server domain with [Config.Resolver], keeps the
// addresses of the requested family, and queries all of them in parallel,
// returning the first mapped address. Retransmissions follow RFC 5389.
//
// Construct using [NewProbeIPLookup].
type ProbeIPLookup struct {
	cfg      *Config
	endpoint string

	// Rc is the maximum number of requests sent to each server address.
	Rc int

	// Rm is the number of RTOs to wait for a response after the last request.
	Rm int

	// RTO is the initial retransmission timeout, doubled after each request.
	RTO time.Duration

	// Timeout bounds the whole lookup.
	Timeout time.Duration
}

// NewProbeIPLookup creates a [*ProbeIPLookup] for the given "domain:port" endpoint.
func NewProbeIPLookup(cfg *Config, endpoint string) *ProbeIPLookup {
	return &ProbeIPLookup{
		cfg:      cfg,
		endpoint: endpoint,
		Rc:       7,
		Rm:       16,
		RTO:      500 * time.Millisecond,
		Timeout:  4 * time.Second,
	}
}

// LookupIPv4 returns the IPv4 address of the probe.
func (c *ProbeIPLookup) LookupIPv4(ctx context.Context) (string, error) {
	return c.lookup(ctx, "udp4", netip.Addr.Is4)
}

// LookupIPv6 returns the IPv6 address of the probe.
func (c *ProbeIPLookup) LookupIPv6(ctx context.Context) (string, error) {
	return c.lookup(ctx, "udp6", netip.Addr.Is6)
}

type probeIPResult struct {
	addr string
	err  error
}

func (c *ProbeIPLookup) lookup(ctx context.Context, family string, accept func(netip.Addr) bool) (string, error) {
	domain, port, err := net.SplitHostPort(c.endpoint)
	if err != nil {
		return "", err
	}
	portnum, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return "", err
	}

	addrs, err := c.cfg.Resolver.LookupHost(ctx, domain)
	if err != nil {
		return "", err
	}
	var servers []netip.AddrPort
	for _, entry := range addrs {
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			continue
		}
		if addr = addr.Unmap(); accept(addr) {
			servers = append(servers, netip.AddrPortFrom(addr, uint16(portnum)))
		}
	}
	if len(servers) <= 0 {
		return "", fmt.Errorf("%w: %s: %s", ErrNoSTUNServerAddress, domain, family)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	results := make(chan probeIPResult, len(servers))
	for _, server := range servers {
		go func() {
			addr, err := c.bind(ctx, server)
			results <- probeIPResult{addr: addr, err: err}
		}()
	}

	var errs []error
	for range servers {
		result := <-results
		if result.err == nil {
			return result.addr, nil
		}
		errs = append(errs, result.err)
	}
	return "", errors.Join(errs...)
}

// bind runs a binding request transaction with the given server.
func (c *ProbeIPLookup) bind(ctx context.Context, server netip.AddrPort) (string, error) {
	logger := c.cfg.Logger
	t0 := c.cfg.TimeNow()
	logger.Info(
		"stunBindingStart",
		slog.String("protocol", "udp"),
		slog.String("remoteAddr", server.String()),
		slog.Time("t", t0),
	)

	mapped, err := c.exchange(ctx, logger, server)

	logger.Info(
		"stunBindingDone",
		slog.Any("err", err),
		slog.String("errClass", c.cfg.ErrClassifier.Classify(err)),
		slog.String("protocol", "udp"),
		slog.String("remoteAddr", server.String()),
		slog.String("stunMappedAddr", mapped),
		slog.Time("t0", t0),
		slog.Time("t", c.cfg.TimeNow()),
	)
	return mapped, err
}

func (c *ProbeIPLookup) exchange(ctx context.Context, logger SLogger, server netip.AddrPort) (string, error) {
	conn, err := newConnector(c.cfg, logger).dial(ctx, "udp", server)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	resp, err := c.transact(conn)
	if err != nil {
		return "", err
	}
	if resp.Type != stun.BindingSuccess {
		return "", fmt.Errorf("engine: STUN binding request failed: %s", resp.Type)
	}
	var mapped stun.XORMappedAddress
	if err := mapped.GetFrom(resp); err != nil {
		return "", err
	}
	return mapped.IP.String(), nil
}

// transact sends the binding request until a response with the same
// transaction ID arrives or the retransmissions are exhausted.
func (c *ProbeIPLookup) transact(conn net.Conn) (*stun.Message, error) {
	req := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	rto := c.RTO

	for idx := 0; idx < c.Rc; idx++ {
		timeout := rto
		if idx == c.Rc-1 {
			timeout = time.Duration(c.Rm) * rto
		}
		rto *= 2

		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		if _, err := req.WriteTo(conn); err != nil {
			return nil, err
		}

		for {
			const respBufferSize = 4 << 10
			resp := &stun.Message{Raw: make([]byte, respBufferSize)}
			_, err := resp.ReadFrom(conn)
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			if err != nil {
				return nil, err
			}

			// RFC 5389 Sect. 7.3: ignore unexpected responses
			if resp.Type != stun.BindingSuccess && resp.Type != stun.BindingError {
				continue
			}
			if resp.TransactionID != req.TransactionID {
				continue
			}
			return resp, nil
		}
	}

	return nil, stun.ErrTransactionTimeOut
}
