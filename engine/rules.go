// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"fmt"

	"github.com/bassosimone/dsl"
)

// ruleFunc is a [LoaderRule] implemented by a function.
type ruleFunc struct {
	name dsl.StageName
	load func(loader *Loader, node *LoadableNode) (Runnable, error)
}

var _ LoaderRule = &ruleFunc{}

// Load implements [LoaderRule].
func (r *ruleFunc) Load(loader *Loader, node *LoadableNode) (Runnable, error) {
	return r.load(loader, node)
}

// StageName implements [LoaderRule].
func (r *ruleFunc) StageName() dsl.StageName {
	return r.name
}

// leafRule returns a [LoaderRule] for a stage without children whose
// arguments have type Args and whose implementation is a Func[A, B].
func leafRule[Args, A, B any](
	name dsl.StageName, newFunc func(rtx *Runtime, args *Args) (Func[A, B], error)) LoaderRule {
	return &ruleFunc{
		name: name,
		load: func(loader *Loader, node *LoadableNode) (Runnable, error) {
			if err := loader.RequireExactlyNumChildren(node, 0); err != nil {
				return nil, err
			}
			var args Args
			if err := loader.LoadArguments(node, &args); err != nil {
				return nil, err
			}
			fn, err := newFunc(loader.Runtime(), &args)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %s", ErrLoad, name, err.Error())
			}
			return erase(loader.Runtime(), name, fn), nil
		},
	}
}

func loadCompose(loader *Loader, node *LoadableNode) (Runnable, error) {
	children, err := loader.LoadChildren(node, 2)
	if err != nil {
		return nil, err
	}
	return Compose2(children[0], children[1]), nil
}

func loadNewEndpointPipeline(loader *Loader, node *LoadableNode) (Runnable, error) {
	children, err := loader.LoadChildren(node, 1)
	if err != nil {
		return nil, err
	}
	fn := newEndpointPipelineFunc(loader.Runtime(), children[0])
	return erase(loader.Runtime(), dsl.StageNewEndpointPipeline, fn), nil
}

func defaultRules() []LoaderRule {
	return []LoaderRule{
		&ruleFunc{name: dsl.StageCompose, load: loadCompose},
		leafRule(dsl.StageDiscard, newDiscardFunc),
		leafRule(dsl.StageDNSLookupGetaddrinfo, newDNSLookupGetaddrinfoFunc),
		leafRule(dsl.StageDNSLookupTCP, newDNSLookupTCPFunc),
		leafRule(dsl.StageDNSLookupUDP, newDNSLookupUDPFunc),
		leafRule(dsl.StageDomainName, newDomainNameFunc),
		leafRule(dsl.StageHTTPConnectionTLS, newHTTPConnectionTLSFunc),
		leafRule(dsl.StageHTTPTransaction, newHTTPTransactionFunc),
		leafRule(dsl.StageMakeEndpointsForPort, newMakeEndpointsForPortFunc),
		leafRule(dsl.StageNewEndpoint, newNewEndpointFunc),
		&ruleFunc{name: dsl.StageNewEndpointPipeline, load: loadNewEndpointPipeline},
		leafRule(dsl.StageTCPConnect, newTCPConnectFunc),
		leafRule(dsl.StageTLSHandshake, newTLSHandshakeFunc),
	}
}
