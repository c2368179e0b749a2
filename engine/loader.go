// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bassosimone/dsl"
)

// LoadableNode is the JSON representation of a [*dsl.Stage] as
// received by [*Engine.RunDSL].
type LoadableNode struct {
	StageName dsl.StageName   `json:"stage_name"`
	Arguments json.RawMessage `json:"arguments"`
	Children  []*LoadableNode `json:"children"`
}

// LoaderRule converts a [*LoadableNode] with a given name to a [Runnable].
type LoaderRule interface {
	// Load converts the node to a [Runnable].
	Load(loader *Loader, node *LoadableNode) (Runnable, error)

	// StageName returns the name of the stage handled by this rule.
	StageName() dsl.StageName
}

// Loader converts a tree of [*LoadableNode] into a [Runnable].
//
// Construct using [NewLoader].
type Loader struct {
	rtx   *Runtime
	rules map[dsl.StageName]LoaderRule
}

// NewLoader creates a new [*Loader] producing [Runnable] bound to the
// given [*Runtime] and knowing all the stages defined by [dsl].
func NewLoader(rtx *Runtime) *Loader {
	loader := &Loader{rtx: rtx, rules: map[dsl.StageName]LoaderRule{}}
	for _, rule := range defaultRules() {
		loader.Register(rule)
	}
	return loader
}

// Register registers a [LoaderRule], replacing any previous rule
// for the same stage name.
func (l *Loader) Register(rule LoaderRule) {
	l.rules[rule.StageName()] = rule
}

// Runtime returns the [*Runtime] used by the loader.
func (l *Loader) Runtime() *Runtime {
	return l.rtx
}

// Load converts the given node to a [Runnable].
func (l *Loader) Load(node *LoadableNode) (Runnable, error) {
	if node == nil {
		return nil, fmt.Errorf("%w: nil node", ErrLoad)
	}
	rule, found := l.rules[node.StageName]
	if !found {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrLoad, node.StageName)
	}
	return rule.Load(l, node)
}

// LoadChildren requires the node to have exactly count children and
// converts each of them to a [Runnable].
func (l *Loader) LoadChildren(node *LoadableNode, count int) ([]Runnable, error) {
	if err := l.RequireExactlyNumChildren(node, count); err != nil {
		return nil, err
	}
	var runnables []Runnable
	for _, child := range node.Children {
		runnable, err := l.Load(child)
		if err != nil {
			return nil, err
		}
		runnables = append(runnables, runnable)
	}
	return runnables, nil
}

// RequireExactlyNumChildren returns an error if the node does not
// have exactly count children.
func (l *Loader) RequireExactlyNumChildren(node *LoadableNode, count int) error {
	if len(node.Children) != count {
		return fmt.Errorf("%w: %s: want %d children, got %d", ErrLoad, node.StageName, count, len(node.Children))
	}
	return nil
}

// LoadArguments decodes the node arguments into out, which should be a
// pointer to one of the arguments structs defined by [dsl].
func (l *Loader) LoadArguments(node *LoadableNode, out any) error {
	raw := bytes.TrimSpace(node.Arguments)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrLoad, node.StageName, err.Error())
	}
	return nil
}
