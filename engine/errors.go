// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import "errors"

// ErrLoad indicates that the AST is not well formed: an unknown stage
// name, a wrong number of children, or invalid arguments.
var ErrLoad = errors.New("engine: cannot load AST")

// ErrInputType indicates that a stage received an input of the wrong type,
// which happens when the AST composes incompatible stages.
var ErrInputType = errors.New("engine: unexpected input type")
