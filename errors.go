// SPDX-License-Identifier: GPL-3.0-or-later

package dsl

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument indicates that a constructor, [Compose], or [Run]
// received an argument that would produce an invalid AST.
//
// Use [errors.Is] to test for this error: the concrete type returned
// by this package is [*InvalidArgumentError].
var ErrInvalidArgument = errors.New("dsl: invalid argument")

// InvalidArgumentError describes which rule a caller violated.
type InvalidArgumentError struct {
	// Op is the name of the function that failed (e.g., "DomainName").
	Op string

	// Reason explains what is wrong with the argument.
	Reason string
}

var _ error = &InvalidArgumentError{}

// Error implements error.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidArgument.Error(), e.Op, e.Reason)
}

// Is allows matching [ErrInvalidArgument] with [errors.Is].
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func newInvalidArgumentError(op, format string, args ...any) error {
	return &InvalidArgumentError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
