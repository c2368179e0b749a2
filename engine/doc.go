// SPDX-License-Identifier: GPL-3.0-or-later

// Package engine is a reference implementation of [dsl.Engine].
//
// # Core Abstraction
//
// The engine loads the serialized AST produced by [dsl.Run] into a tree
// of [Func] values:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// The [*Loader] maps each stage name to a [LoaderRule]. Each rule checks
// the number of children and decodes the arguments, then wraps a typed
// Func into a [Runnable] that checks the type of its input at runtime.
// Use [*Loader.Register] to add or replace rules.
//
// # Stage Types
//
// The stages convert values as follows:
//   - domain_name: [Unit] to string
//   - dns_lookup_*: string to [*DNSLookupResult]
//   - make_endpoints_for_port: [*DNSLookupResult] to []*[Endpoint]
//   - new_endpoint: [Unit] to [*Endpoint]
//   - new_endpoint_pipeline: []*[Endpoint] to [Unit]
//   - tcp_connect: [*Endpoint] to [*TCPConnection]
//   - tls_handshake: [*TCPConnection] to [*TLSConnection]
//   - http_connection_tls: [*TLSConnection] to [*HTTPConnection]
//   - http_transaction: [*HTTPConnection] to [*HTTPResponse]
//   - discard: anything to [Unit]
//
// A stage receiving a value of the wrong type fails with [ErrInputType].
//
// # Connection Lifecycle
//
// Stages creating connections transfer ownership to the next stage on
// success and close them on error. The discard stage closes its input.
// The new_endpoint_pipeline stage closes what its child returns.
//
// # Observability
//
// All stages emit structured log events through the [*slog.Logger]
// returned by [*Runtime.Logger]. Events at [slog.LevelInfo] become
// [Observation] values in the result, and all events are forwarded
// to the [SLogger] configured in [Config].
//
// Span events (*Start/*Done pairs) share a common set of fields:
// localAddr, remoteAddr, protocol, and t (timestamp). Completion events
// additionally include t0 (start time), err, and errClass. I/O-level
// events (read, write, deadline changes) use [slog.LevelDebug].
//
// Each endpoint measured by new_endpoint_pipeline runs in its own
// goroutine with a spanID attribute generated by [NewSpanID].
//
// The [*Metrics] count successes and failures of each stage.
//
// # Probe IP
//
// The [*ProbeIPLookup] discovers the public IP address of the probe
// using STUN and logs through the same [SLogger] as the stages.
//
// # Timeout and Context Philosophy
//
// The engine is context-transparent: stages never modify the context
// they receive. Connections are closed as soon as the context is done,
// so that blocking I/O respects the context deadline.
package engine
