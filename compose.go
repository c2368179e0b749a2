//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.0/internal/x/dslx/fxcore.go
//

package dsl

import "github.com/bassosimone/runtimex"

// Compose chains two or more stages together.
//
// The output of each stage becomes the input of the next one. Composition
// is right associative: Compose(a, b, c) returns compose(a, compose(b, c)),
// so the order of the arguments is the execution order.
//
// This function fails with [ErrInvalidArgument] if it receives fewer
// than two stages or a nil stage.
func Compose(stages ...*Stage) (*Stage, error) {
	if len(stages) < 2 {
		return nil, newInvalidArgumentError("Compose", "need at least two stages, got %d", len(stages))
	}
	for idx, stage := range stages {
		if stage == nil {
			return nil, newInvalidArgumentError("Compose", "stage #%d is nil", idx)
		}
	}
	return composeN(stages[0], stages[1:]), nil
}

func compose2(left, right *Stage) *Stage {
	return newStage(StageCompose, NoArguments{}, left, right)
}

func composeN(left *Stage, rights []*Stage) *Stage {
	runtimex.Assert(len(rights) > 0)
	if len(rights) == 1 {
		return compose2(left, rights[0])
	}
	return compose2(left, composeN(rights[0], rights[1:]))
}
