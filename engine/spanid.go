// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// The engine starts a new span for each endpoint measured by a
// [dsl.StageNewEndpointPipeline] stage and tags all the observations
// collected for that endpoint with the span ID.
//
// This function panics if the system random number generator fails.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
