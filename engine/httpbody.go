// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/safeconn"
)

// observedBody wraps an HTTP response body to emit structured log events
// lazily: httpBodyStreamStart on the first Read, and httpBodyStreamDone on
// Close (only if at least one Read happened).
type observedBody struct {
	// body is the actual body.
	body io.ReadCloser

	// closeOnce ensures that Close has "once" semantics.
	closeOnce sync.Once

	// count is the number of bytes read so far.
	count atomic.Int64

	// didRead tracks whether at least one Read happened.
	didRead atomic.Bool

	// hc is the connection that received the response.
	hc *HTTPConnection

	// readOnce ensures we log httpBodyStreamStart only once.
	readOnce sync.Once

	// t0 is the time when we started reading the body.
	t0 time.Time
}

var _ io.ReadCloser = &observedBody{}

func newObservedBody(hc *HTTPConnection, body io.ReadCloser) *observedBody {
	return &observedBody{body: body, hc: hc}
}

// Read implements [io.ReadCloser].
func (b *observedBody) Read(buffer []byte) (int, error) {
	b.readOnce.Do(func() {
		b.t0 = b.hc.TimeNow() // write t0 BEFORE the atomic store (release)
		b.didRead.Store(true) // release: makes t0 visible to Close
		b.hc.Logger.Info("httpBodyStreamStart", b.addrs(slog.Time("t", b.t0))...)
	})
	count, err := b.body.Read(buffer)
	b.count.Add(int64(count))
	return count, err
}

// Close implements [io.ReadCloser].
func (b *observedBody) Close() (err error) {
	b.closeOnce.Do(func() {
		err = b.body.Close()
		if b.didRead.Load() { // acquire: t0 is visible if this returns true
			b.hc.Logger.Info("httpBodyStreamDone", b.addrs(
				slog.Int64("ioBytesCount", b.count.Load()),
				slog.Any("err", err),
				slog.String("errClass", b.hc.ErrClassifier.Classify(err)),
				slog.Time("t0", b.t0),
				slog.Time("t", b.hc.TimeNow()),
			)...)
		}
	})
	return
}

func (b *observedBody) addrs(attrs ...any) []any {
	conn := b.hc.conn
	return append(attrs,
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
	)
}
