// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"crypto/x509"
	"net"
	"time"

	"github.com/bassosimone/errclass"
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// By making the engine depend on an abstract implementation we
// allow for unit testing and for using alternative dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver abstracts the [*net.Resolver] behavior.
//
// The [*net.Resolver] uses getaddrinfo when cgo is available.
type Resolver interface {
	LookupHost(ctx context.Context, domain string) ([]string, error)
}

// SLogger is the subset of [*slog.Logger] used to forward events.
//
// Stages log lifecycle events (connect, close, handshake, round trip,
// lookup) at Info and per-I/O events at Debug.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// DefaultSLogger returns an [SLogger] that drops every event.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

func (discardSLogger) Debug(msg string, args ...any) {}

func (discardSLogger) Info(msg string, args ...any) {}

// ErrClassifier maps an error to a short label such as "ETIMEDOUT".
//
// The label is the errClass attribute of *Done events.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc is a function implementing [ErrClassifier].
type ErrClassifierFunc func(error) string

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier is the [ErrClassifier] backed by [errclass.New].
var DefaultErrClassifier = ErrClassifierFunc(errclass.New)

// Config holds the configuration of the [*Engine].
//
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by the stages that connect.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// HTTPMaxBodySize is the maximum number of body bytes to read.
	//
	// Set by [NewConfig] to 1<<22.
	HTTPMaxBodySize int64

	// HTTPUserAgent is the User-Agent used by HTTP transactions.
	//
	// Set by [NewConfig] to [DefaultHTTPUserAgent].
	HTTPUserAgent string

	// Logger receives the structured log events emitted while running
	// in addition to the observations collected in the result.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// Resolver is used by the getaddrinfo lookup stage.
	//
	// Set by [NewConfig] to [*net.Resolver].
	Resolver Resolver

	// RootCAs contains the root CAs to use when the TLS handshake
	// stage does not specify any certificate. A nil value means
	// using the system root CAs.
	//
	// Set by [NewConfig] to nil.
	RootCAs *x509.CertPool

	// TLSEngine is the engine used by the TLS handshake stage.
	//
	// Set by [NewConfig] to [TLSEngineStdlib].
	TLSEngine TLSEngine

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// DefaultHTTPUserAgent is the default User-Agent for HTTP transactions.
const DefaultHTTPUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:          &net.Dialer{},
		ErrClassifier:   DefaultErrClassifier,
		HTTPMaxBodySize: 1 << 22,
		HTTPUserAgent:   DefaultHTTPUserAgent,
		Logger:          DefaultSLogger(),
		Resolver:        &net.Resolver{},
		RootCAs:         nil,
		TLSEngine:       TLSEngineStdlib{},
		TimeNow:         time.Now,
	}
}
