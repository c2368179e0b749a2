// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
	"github.com/bassosimone/tlsstub"
)

// testZeroTime is the zero time used by tests.
var testZeroTime = time.Date(2023, 8, 1, 10, 0, 0, 0, time.UTC)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
//
// The handler is safe to use from multiple goroutines.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var (
		mu      sync.Mutex
		records []slog.Record
	)
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), &records
}

// newMockTLSEngine returns a [*tlsstub.FuncTLSEngine] that wraps the given
// [TLSConn]. The engine's ClientFunc returns the conn, NameFunc returns
// "mock", and ParrotFunc returns "".
func newMockTLSEngine(conn TLSConn) *tlsstub.FuncTLSEngine[TLSConn] {
	return &tlsstub.FuncTLSEngine[TLSConn]{
		ClientFunc: func(c net.Conn, config *tls.Config) TLSConn {
			return conn
		},
		NameFunc: func() string {
			return "mock"
		},
		ParrotFunc: func() string {
			return ""
		},
	}
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}

// newClosableConn returns a [*netstub.FuncConn] like [newMinimalConn] whose
// Close increments the returned counter.
func newClosableConn() (*netstub.FuncConn, *int) {
	var (
		mu    sync.Mutex
		count int
	)
	conn := newMinimalConn()
	conn.CloseFunc = func() error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}
	return conn, &count
}

// newTestRuntime returns a [*Runtime] using the given config and [testZeroTime].
func newTestRuntime(cfg *Config) *Runtime {
	return NewRuntime(cfg, testZeroTime)
}

// newTestEndpoint returns an [*Endpoint] logging through the runtime logger.
func newTestEndpoint(rtx *Runtime, address, domain string) *Endpoint {
	return &Endpoint{Address: address, Domain: domain, logger: rtx.Logger()}
}

// recordMessages returns the messages of the given records.
func recordMessages(records []slog.Record) []string {
	out := []string{}
	for _, record := range records {
		out = append(out, record.Message)
	}
	return out
}

// observationMessages returns the "msg" of the given observations.
func observationMessages(observations []Observation) []string {
	out := []string{}
	for _, obs := range observations {
		out = append(out, obs["msg"].(string))
	}
	return out
}

// recordAttr returns the value of the attribute with the given key.
func recordAttr(record slog.Record, key string) (value slog.Value, found bool) {
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			value, found = attr.Value, true
			return false
		}
		return true
	})
	return
}
