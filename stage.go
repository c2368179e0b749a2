// SPDX-License-Identifier: GPL-3.0-or-later

package dsl

import (
	"encoding/json"
	"slices"
)

// StageName identifies the kind of a [*Stage].
//
// The set of stage names is closed: the only way to obtain a [*Stage]
// is to use the constructors exported by this package.
type StageName string

// Stage names understood by the execution engine.
const (
	StageCompose              StageName = "compose"
	StageDiscard              StageName = "discard"
	StageDNSLookupGetaddrinfo StageName = "dns_lookup_getaddrinfo"
	StageDNSLookupTCP         StageName = "dns_lookup_tcp"
	StageDNSLookupUDP         StageName = "dns_lookup_udp"
	StageDomainName           StageName = "domain_name"
	StageHTTPConnectionTLS    StageName = "http_connection_tls"
	StageHTTPTransaction      StageName = "http_transaction"
	StageMakeEndpointsForPort StageName = "make_endpoints_for_port"
	StageNewEndpoint          StageName = "new_endpoint"
	StageNewEndpointPipeline  StageName = "new_endpoint_pipeline"
	StageTCPConnect           StageName = "tcp_connect"
	StageTLSHandshake         StageName = "tls_handshake"
)

// Arity returns the number of children a stage of this kind has, or
// -1 if the name is not a known stage name.
func (sn StageName) Arity() int {
	switch sn {
	case StageCompose:
		return 2
	case StageNewEndpointPipeline:
		return 1
	case StageDiscard, StageDNSLookupGetaddrinfo, StageDNSLookupTCP, StageDNSLookupUDP,
		StageDomainName, StageHTTPConnectionTLS, StageHTTPTransaction, StageMakeEndpointsForPort,
		StageNewEndpoint, StageTCPConnect, StageTLSHandshake:
		return 0
	default:
		return -1
	}
}

// Stage is a node of the measurement pipeline AST.
//
// A Stage is immutable once constructed and is therefore safe to share
// between goroutines. Composition builds new stages wrapping existing ones.
//
// The JSON serialization of a Stage is the wire format consumed by the
// execution engine:
//
//	{"stage_name": "...", "arguments": {...}, "children": [...]}
type Stage struct {
	name      StageName
	arguments stageArguments
	children  []*Stage
}

// stageArguments is implemented by the per-stage argument types.
type stageArguments interface {
	// asMap returns a freshly allocated map containing all the arguments.
	asMap() map[string]any
}

func newStage(name StageName, arguments stageArguments, children ...*Stage) *Stage {
	return &Stage{
		name:      name,
		arguments: arguments,
		children:  append([]*Stage{}, children...),
	}
}

// Name returns the stage name.
func (s *Stage) Name() StageName {
	return s.name
}

// Arguments returns a copy of the stage arguments.
//
// Every argument declared for the stage kind is present; optional
// arguments the caller did not provide contain their default value.
func (s *Stage) Arguments() map[string]any {
	return s.arguments.asMap()
}

// Children returns a copy of the stage children.
func (s *Stage) Children() []*Stage {
	return slices.Clone(s.children)
}

// serializableStage is the JSON representation of a [*Stage].
type serializableStage struct {
	StageName StageName      `json:"stage_name"`
	Arguments map[string]any `json:"arguments"`
	Children  []*Stage       `json:"children"`
}

var _ json.Marshaler = &Stage{}

// MarshalJSON implements [json.Marshaler].
func (s *Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(&serializableStage{
		StageName: s.name,
		Arguments: s.arguments.asMap(),
		Children:  s.children,
	})
}

// NoArguments contains the arguments of stages taking no arguments.
type NoArguments struct{}

func (NoArguments) asMap() map[string]any {
	return map[string]any{}
}

// DomainNameArguments contains the [StageDomainName] arguments.
type DomainNameArguments struct {
	Domain string `json:"domain" mapstructure:"domain"`
}

func (a DomainNameArguments) asMap() map[string]any {
	return map[string]any{"domain": a.Domain}
}

// DNSLookupServerArguments contains the [StageDNSLookupUDP] and
// [StageDNSLookupTCP] arguments.
type DNSLookupServerArguments struct {
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
}

func (a DNSLookupServerArguments) asMap() map[string]any {
	return map[string]any{"endpoint": a.Endpoint}
}

// HTTPTransactionArguments contains the [StageHTTPTransaction] arguments.
//
// This struct is currently empty: options passed to [HTTPTransaction] are
// reserved for future use and not applied.
type HTTPTransactionArguments struct{}

func (HTTPTransactionArguments) asMap() map[string]any {
	return map[string]any{}
}

// MakeEndpointsForPortArguments contains the [StageMakeEndpointsForPort] arguments.
type MakeEndpointsForPortArguments struct {
	Port uint16 `json:"port" mapstructure:"port"`
}

func (a MakeEndpointsForPortArguments) asMap() map[string]any {
	return map[string]any{"port": a.Port}
}

// NewEndpointArguments contains the [StageNewEndpoint] arguments.
type NewEndpointArguments struct {
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	Domain   string `json:"domain" mapstructure:"domain"`
}

func (a NewEndpointArguments) asMap() map[string]any {
	return map[string]any{"endpoint": a.Endpoint, "domain": a.Domain}
}

// TLSHandshakeArguments contains the [StageTLSHandshake] arguments.
type TLSHandshakeArguments struct {
	// ALPN lists the protocols to offer via ALPN.
	ALPN []string `json:"alpn" mapstructure:"alpn"`

	// SkipVerify disables certificate verification.
	SkipVerify bool `json:"skip_verify" mapstructure:"skip_verify"`

	// SNI is the server name to send. When empty, the engine
	// uses the domain associated with the endpoint.
	SNI string `json:"sni" mapstructure:"sni"`

	// X509Certs contains PEM-encoded root certificates to use
	// instead of the system ones.
	X509Certs []string `json:"x509_certs" mapstructure:"x509_certs"`
}

func (a TLSHandshakeArguments) asMap() map[string]any {
	return map[string]any{
		"alpn":        slices.Clone(a.ALPN),
		"skip_verify": a.SkipVerify,
		"sni":         a.SNI,
		"x509_certs":  slices.Clone(a.X509Certs),
	}
}
