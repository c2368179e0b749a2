// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bassosimone/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustParseNode parses a JSON-serialized AST.
func mustParseNode(t *testing.T, data string) *LoadableNode {
	var node LoadableNode
	require.NoError(t, json.Unmarshal([]byte(data), &node))
	return &node
}

// Load rejects malformed ASTs with ErrLoad.
func TestLoaderLoadErrors(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// ast is the JSON-serialized AST to load.
		ast string
	}{
		{
			name: "unknown stage",
			ast:  `{"stage_name": "quic_handshake", "arguments": {}, "children": []}`,
		},

		{
			name: "compose with one child",
			ast: `{"stage_name": "compose", "arguments": {}, "children": [
				{"stage_name": "discard", "arguments": {}, "children": []}
			]}`,
		},

		{
			name: "leaf with children",
			ast: `{"stage_name": "tcp_connect", "arguments": {}, "children": [
				{"stage_name": "discard", "arguments": {}, "children": []}
			]}`,
		},

		{
			name: "arguments of the wrong type",
			ast:  `{"stage_name": "make_endpoints_for_port", "arguments": {"port": "443"}, "children": []}`,
		},

		{
			name: "missing mandatory argument",
			ast:  `{"stage_name": "domain_name", "arguments": {}, "children": []}`,
		},

		{
			name: "invalid endpoint",
			ast:  `{"stage_name": "new_endpoint", "arguments": {"endpoint": "example.org"}, "children": []}`,
		},

		{
			name: "invalid DNS server endpoint",
			ast:  `{"stage_name": "dns_lookup_udp", "arguments": {"endpoint": "8.8.8.8"}, "children": []}`,
		},

		{
			name: "invalid PEM certificate",
			ast:  `{"stage_name": "tls_handshake", "arguments": {"x509_certs": ["garbage"]}, "children": []}`,
		},

		{
			name: "error in a nested child",
			ast: `{"stage_name": "new_endpoint_pipeline", "arguments": {}, "children": [
				{"stage_name": "compose", "arguments": {}, "children": [
					{"stage_name": "tcp_connect", "arguments": {}, "children": []},
					{"stage_name": "quic_handshake", "arguments": {}, "children": []}
				]}
			]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(newTestRuntime(NewConfig()))

			runnable, err := loader.Load(mustParseNode(t, tt.ast))

			require.ErrorIs(t, err, ErrLoad)
			assert.Nil(t, runnable)
		})
	}
}

// Load rejects a nil node.
func TestLoaderLoadNil(t *testing.T) {
	loader := NewLoader(newTestRuntime(NewConfig()))
	runnable, err := loader.Load(nil)
	require.ErrorIs(t, err, ErrLoad)
	assert.Nil(t, runnable)
}

// Load accepts missing or null arguments for stages without arguments.
func TestLoaderLoadMissingArguments(t *testing.T) {
	loader := NewLoader(newTestRuntime(NewConfig()))

	for _, ast := range []string{
		`{"stage_name": "discard", "children": []}`,
		`{"stage_name": "discard", "arguments": null, "children": []}`,
	} {
		runnable, err := loader.Load(mustParseNode(t, ast))
		require.NoError(t, err)
		require.NotNil(t, runnable)
	}
}

// Load ignores unknown argument keys.
func TestLoaderLoadUnknownArguments(t *testing.T) {
	loader := NewLoader(newTestRuntime(NewConfig()))
	node := mustParseNode(t, `{
		"stage_name": "domain_name",
		"arguments": {"domain": "example.org", "extra": 17},
		"children": []
	}`)

	runnable, err := loader.Load(node)
	require.NoError(t, err)

	out, err := runnable.Call(context.Background(), Unit{})
	require.NoError(t, err)
	assert.Equal(t, "example.org", out)
}

// Load builds compose chains that pass values between stages.
func TestLoaderLoadCompose(t *testing.T) {
	loader := NewLoader(newTestRuntime(NewConfig()))
	node := mustParseNode(t, `{"stage_name": "compose", "arguments": {}, "children": [
		{"stage_name": "new_endpoint", "arguments": {"endpoint": "93.184.216.34:443", "domain": "example.org"}, "children": []},
		{"stage_name": "discard", "arguments": {}, "children": []}
	]}`)

	runnable, err := loader.Load(node)
	require.NoError(t, err)

	out, err := runnable.Call(context.Background(), Unit{})
	require.NoError(t, err)
	assert.Equal(t, Unit{}, out)
}

// Running a chain of incompatible stages fails with ErrInputType.
func TestLoaderLoadIncompatibleStages(t *testing.T) {
	loader := NewLoader(newTestRuntime(NewConfig()))
	node := mustParseNode(t, `{"stage_name": "compose", "arguments": {}, "children": [
		{"stage_name": "domain_name", "arguments": {"domain": "example.org"}, "children": []},
		{"stage_name": "tcp_connect", "arguments": {}, "children": []}
	]}`)

	runnable, err := loader.Load(node)
	require.NoError(t, err)

	out, err := runnable.Call(context.Background(), Unit{})
	require.ErrorIs(t, err, ErrInputType)
	assert.Nil(t, out)
}

// customRule is a [LoaderRule] used to test [*Loader.Register].
type customRule struct{}

func (customRule) StageName() dsl.StageName {
	return dsl.StageDiscard
}

func (customRule) Load(loader *Loader, node *LoadableNode) (Runnable, error) {
	return FuncAdapter[any, any](func(ctx context.Context, input any) (any, error) {
		return "custom", nil
	}), nil
}

// Register replaces the rule for an existing stage name.
func TestLoaderRegister(t *testing.T) {
	loader := NewLoader(newTestRuntime(NewConfig()))
	loader.Register(customRule{})

	runnable, err := loader.Load(mustParseNode(t, `{"stage_name": "discard", "arguments": {}, "children": []}`))
	require.NoError(t, err)

	out, err := runnable.Call(context.Background(), Unit{})
	require.NoError(t, err)
	assert.Equal(t, "custom", out)
}
