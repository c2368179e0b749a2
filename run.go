// SPDX-License-Identifier: GPL-3.0-or-later

package dsl

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bassosimone/runtimex"
)

// Result is the opaque value returned by an [Engine].
type Result = map[string]any

// Engine interprets a serialized AST.
//
// The rawAST argument is the JSON serialization of a [*Stage]. The
// zeroTime argument is the reference time the engine should use to
// compute relative timings of the events it observes.
type Engine interface {
	RunDSL(ctx context.Context, rawAST []byte, zeroTime time.Time) (Result, error)
}

// EngineFunc adapts a function to the [Engine] interface.
type EngineFunc func(ctx context.Context, rawAST []byte, zeroTime time.Time) (Result, error)

var _ Engine = EngineFunc(nil)

// RunDSL implements [Engine].
func (fx EngineFunc) RunDSL(ctx context.Context, rawAST []byte, zeroTime time.Time) (Result, error) {
	return fx(ctx, rawAST, zeroTime)
}

// Run serializes the given AST root and runs it using the given [Engine].
//
// The result and the error returned by the engine are passed through
// unmodified. The only error generated by Run itself is [ErrInvalidArgument]
// when root is nil, in which case the engine is not invoked.
func Run(ctx context.Context, engine Engine, root *Stage, zeroTime time.Time) (Result, error) {
	if root == nil {
		return nil, newInvalidArgumentError("Run", "nil root stage")
	}
	// all the arguments types are plain data, so marshaling cannot fail
	rawAST := runtimex.PanicOnError1(json.Marshal(root))
	return engine.RunDSL(ctx, rawAST, zeroTime)
}
