//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/tlsdialer.go
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/tls.go
//

package engine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net"

	"github.com/bassosimone/dsl"
	"github.com/bassosimone/safeconn"
)

// TLSEngine is the engine to create a new [TLSConn].
type TLSEngine interface {
	// Client builds a new client [TLSConn].
	Client(conn net.Conn, config *tls.Config) TLSConn

	// Name returns the engine name.
	Name() string

	// Parrot returns the configured parrot or an empty string.
	Parrot() string
}

// TLSEngineStdlib implements [TLSEngine] for the standard library.
//
// The zero value is ready to use.
type TLSEngineStdlib struct{}

var _ TLSEngine = TLSEngineStdlib{}

// Client implements [TLSEngine].
//
// This function uses [tls.Client] to build a new [*tls.Conn].
func (TLSEngineStdlib) Client(conn net.Conn, config *tls.Config) TLSConn {
	return tls.Client(conn, config)
}

// Name implements [TLSEngine].
//
// This function returns "stdlib".
func (TLSEngineStdlib) Name() string {
	return "stdlib"
}

// Parrot implements [TLSEngine].
//
// This function returns "".
func (s TLSEngineStdlib) Parrot() string {
	return ""
}

// TLSConn abstracts over [*tls.Conn].
//
// By using an abstraction we allow for alternative TLS implementations.
type TLSConn interface {
	// ConnectionState returns the connection state.
	ConnectionState() tls.ConnectionState

	// HandshakeContext performs the handshake unless interrupted by the context.
	HandshakeContext(ctx context.Context) error

	// Embedding Conn means we can use this type as a [net.Conn].
	net.Conn
}

// tlsHandshakeFunc implements [dsl.StageTLSHandshake].
type tlsHandshakeFunc struct {
	// args contains the stage arguments.
	args *dsl.TLSHandshakeArguments

	// cfg is the engine configuration.
	cfg *Config

	// rootCAs contains the root CAs to use or nil for the system ones.
	rootCAs *x509.CertPool
}

// errInvalidPEM indicates that the x509_certs argument contains an
// entry that is not a PEM-encoded certificate.
var errInvalidPEM = errors.New("x509_certs: cannot parse PEM certificate")

func newTLSHandshakeFunc(rtx *Runtime, args *dsl.TLSHandshakeArguments) (Func[*TCPConnection, *TLSConnection], error) {
	cfg := rtx.Config()
	op := &tlsHandshakeFunc{args: args, cfg: cfg, rootCAs: cfg.RootCAs}
	if len(args.X509Certs) > 0 {
		op.rootCAs = x509.NewCertPool()
		for _, cert := range args.X509Certs {
			if !op.rootCAs.AppendCertsFromPEM([]byte(cert)) {
				return nil, errInvalidPEM
			}
		}
	}
	return op, nil
}

// Call implements [Func].
func (op *tlsHandshakeFunc) Call(ctx context.Context, tcpConn *TCPConnection) (*TLSConnection, error) {
	logger := tcpConn.Endpoint.logger
	config := op.tlsConfig(tcpConn.Endpoint)
	engine := op.cfg.TLSEngine
	conn := tcpConn.Conn
	tconn := engine.Client(conn, config)

	t0 := op.cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	logger.Info(
		"tlsHandshakeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
		slog.String("tlsEngineName", engine.Name()),
		slog.String("tlsParrot", engine.Parrot()),
		slog.Any("tlsOfferedProtocols", config.NextProtos),
		slog.String("tlsServerName", config.ServerName),
		slog.Bool("tlsSkipVerify", config.InsecureSkipVerify),
	)

	err := tconn.HandshakeContext(ctx)
	state := tconn.ConnectionState()

	logger.Info(
		"tlsHandshakeDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.cfg.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.cfg.TimeNow()),
		slog.String("tlsCipherSuite", tls.CipherSuiteName(state.CipherSuite)),
		slog.String("tlsEngineName", engine.Name()),
		slog.String("tlsParrot", engine.Parrot()),
		slog.String("tlsNegotiatedProtocol", state.NegotiatedProtocol),
		slog.Any("tlsOfferedProtocols", config.NextProtos),
		slog.Any("tlsPeerCerts", tlsPeerCerts(state, err)),
		slog.String("tlsServerName", config.ServerName),
		slog.Bool("tlsSkipVerify", config.InsecureSkipVerify),
		slog.String("tlsVersion", tls.VersionName(state.Version)),
	)

	if err != nil {
		tconn.Close() // also closes the TCP connection
		return nil, err
	}
	return &TLSConnection{Conn: tconn, Endpoint: tcpConn.Endpoint}, nil
}

// tlsConfig builds the [*tls.Config] for the given endpoint. The server
// name defaults to the endpoint domain when the sni argument is empty.
func (op *tlsHandshakeFunc) tlsConfig(epnt *Endpoint) *tls.Config {
	serverName := op.args.SNI
	if serverName == "" {
		serverName = epnt.Domain
	}
	return &tls.Config{
		InsecureSkipVerify: op.args.SkipVerify,
		NextProtos:         append([]string{}, op.args.ALPN...),
		RootCAs:            op.rootCAs,
		ServerName:         serverName,
		Time:               op.cfg.TimeNow,
	}
}

func tlsPeerCerts(state tls.ConnectionState, err error) (out [][]byte) {
	out = [][]byte{}

	// 1. Check whether the error is a known certificate error and extract
	// the certificate using `errors.As` for additional robustness.
	var x509HostnameError x509.HostnameError
	if errors.As(err, &x509HostnameError) {
		// Test case: https://wrong.host.badssl.com/
		out = append(out, x509HostnameError.Certificate.Raw)
		return
	}

	var x509UnknownAuthorityError x509.UnknownAuthorityError
	if errors.As(err, &x509UnknownAuthorityError) {
		// Test case: https://self-signed.badssl.com/. This error has
		// never been among the ones returned by MK.
		out = append(out, x509UnknownAuthorityError.Cert.Raw)
		return
	}

	var x509CertificateInvalidError x509.CertificateInvalidError
	if errors.As(err, &x509CertificateInvalidError) {
		// Test case: https://expired.badssl.com/
		out = append(out, x509CertificateInvalidError.Cert.Raw)
		return
	}

	// 2. Otherwise extract certificates from the connection state.
	for _, cert := range state.PeerCertificates {
		out = append(out, cert.Raw)
	}
	return
}
