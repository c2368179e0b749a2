// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/bassosimone/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcResolver implements [Resolver] using a function.
type funcResolver func(ctx context.Context, domain string) ([]string, error)

func (f funcResolver) LookupHost(ctx context.Context, domain string) ([]string, error) {
	return f(ctx, domain)
}

// dns_lookup_getaddrinfo returns the addresses from the resolver.
func TestDNSLookupGetaddrinfoFunc(t *testing.T) {
	wantErr := errors.New("no such host")

	tests := []struct {
		// name describes what this test case verifies.
		name string

		// addrs are the addresses returned by the resolver.
		addrs []string

		// err is the error returned by the resolver.
		err error

		// want is the expected result.
		want *DNSLookupResult
	}{
		{
			name:  "success",
			addrs: []string{"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"},
			want: &DNSLookupResult{
				Domain:    "example.org",
				Addresses: []string{"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"},
			},
		},

		{
			name: "failure",
			err:  wantErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Resolver = funcResolver(func(ctx context.Context, domain string) ([]string, error) {
				assert.Equal(t, "example.org", domain)
				return tt.addrs, tt.err
			})
			rtx := newTestRuntime(cfg)

			fn, err := newDNSLookupGetaddrinfoFunc(rtx, &dsl.NoArguments{})
			require.NoError(t, err)

			result, err := fn.Call(context.Background(), "example.org")

			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, result)
			}
			observations := rtx.Observations()
			assert.Equal(t, []string{"dnsLookupStart", "dnsLookupDone"}, observationMessages(observations))
			assert.Equal(t, "getaddrinfo", observations[1]["serverProtocol"])
		})
	}
}
