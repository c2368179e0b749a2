// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bassosimone/dsl"
)

// Engine is the reference [dsl.Engine].
//
// Construct using [New].
type Engine struct {
	// Config is the engine configuration.
	//
	// Set by [New] to the user-provided value.
	Config *Config
}

var _ dsl.Engine = &Engine{}

// New creates a new [*Engine] using the given [*Config].
//
// A nil config means using [NewConfig].
func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Engine{Config: cfg}
}

// RunDSL implements [dsl.Engine].
//
// The returned [dsl.Result] contains the following keys:
//   - "observations": the [Observation] list in collection order
//   - "metrics": the map returned by [*Metrics.Snapshot]
//   - "failure": nil on success, otherwise the error string
//
// RunDSL returns an error wrapping [ErrLoad] when the AST is not well
// formed and [ErrInputType] when it composes incompatible stages. Other
// failures are measurement results and are reported as "failure".
func (e *Engine) RunDSL(ctx context.Context, rawAST []byte, zeroTime time.Time) (dsl.Result, error) {
	var root LoadableNode
	if err := json.Unmarshal(rawAST, &root); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLoad, err.Error())
	}

	rtx := NewRuntime(e.Config, zeroTime)
	runnable, err := NewLoader(rtx).Load(&root)
	if err != nil {
		return nil, err
	}

	output, err := runnable.Call(ctx, Unit{})
	if err == nil {
		closeIfCloser(output)
	}
	if errors.Is(err, ErrInputType) {
		return nil, err
	}

	result := dsl.Result{
		"observations": rtx.Observations(),
		"metrics":      rtx.Metrics().Snapshot(),
		"failure":      nil,
	}
	if err != nil {
		result["failure"] = err.Error()
	}
	return result, nil
}
