//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.0/internal/x/dslx/fxcore.go
//

package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/bassosimone/dsl"
)

// Func is a generic operation that accepts an input and returns a result.
//
// Each stage of the AST is loaded as a Func. Resource cleanup contract: when
// a Func receives a closeable resource as input and returns an error, it is
// responsible for closing that resource before returning.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a function as a [Func] implementation.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}

// Runnable is a [Func] whose types have been erased so that the
// [*Loader] can compose stages whose types are only known at runtime.
type Runnable = Func[any, any]

// Compose2 chains two [Func] instances together into a pipeline.
//
// The output of op1 becomes the input to op2. If op1 returns an error,
// op2 is not called and the error is returned immediately.
func Compose2[A, B, C any](op1 Func[A, B], op2 Func[B, C]) Func[A, C] {
	return &compose2[A, B, C]{op1, op2}
}

type compose2[A, B, C any] struct {
	op1 Func[A, B]
	op2 Func[B, C]
}

func (c *compose2[A, B, C]) Call(ctx context.Context, input A) (C, error) {
	res, err := c.op1.Call(ctx, input)
	if err != nil {
		var zero C
		return zero, err
	}
	return c.op2.Call(ctx, res)
}

// erase converts a typed [Func] into a [Runnable] that checks the type of
// its input and accounts for the stage success or failure.
func erase[A, B any](rtx *Runtime, stage dsl.StageName, fn Func[A, B]) Runnable {
	return FuncAdapter[any, any](func(ctx context.Context, input any) (any, error) {
		value, ok := input.(A)
		if !ok {
			closeIfCloser(input)
			return nil, fmt.Errorf("%w: %s: want %s, got %T", ErrInputType, stage, reflect.TypeFor[A](), input)
		}
		output, err := fn.Call(ctx, value)
		if err != nil {
			rtx.Metrics().Error(stage)
			return nil, err
		}
		rtx.Metrics().Success(stage)
		return output, nil
	})
}
