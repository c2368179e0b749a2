// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// endpointPipelineFunc runs a child [Runnable] once per endpoint.
//
// Each endpoint is measured in its own goroutine and span: the logger
// passed to the child stages carries a "spanID" attribute. Failures of
// the child are recorded as observations and do not prevent measuring
// the other endpoints. Call only fails with [ErrInputType], when the
// child does not accept an [*Endpoint] somewhere in its chain.
type endpointPipelineFunc struct {
	child Runnable
	rtx   *Runtime
}

func newEndpointPipelineFunc(rtx *Runtime, child Runnable) Func[[]*Endpoint, Unit] {
	return &endpointPipelineFunc{child: child, rtx: rtx}
}

// Call implements [Func].
func (op *endpointPipelineFunc) Call(ctx context.Context, endpoints []*Endpoint) (Unit, error) {
	var (
		mu   sync.Mutex
		errs []error
	)
	wg := &sync.WaitGroup{}
	for _, epnt := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := op.measure(ctx, epnt); errors.Is(err, ErrInputType) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		return Unit{}, errors.Join(errs...)
	}
	return Unit{}, nil
}

func (op *endpointPipelineFunc) measure(ctx context.Context, epnt *Endpoint) error {
	cfg := op.rtx.Config()
	logger := op.rtx.Logger().With(slog.String("spanID", NewSpanID()))
	epnt = epnt.withLogger(logger)

	t0 := cfg.TimeNow()
	logger.Info(
		"endpointPipelineStart",
		slog.String("domain", epnt.Domain),
		slog.String("remoteAddr", epnt.Address),
		slog.Time("t", t0),
	)

	output, err := op.child.Call(ctx, epnt)
	if err == nil {
		closeIfCloser(output)
	}

	logger.Info(
		"endpointPipelineDone",
		slog.String("domain", epnt.Domain),
		slog.Any("err", err),
		slog.String("errClass", cfg.ErrClassifier.Classify(err)),
		slog.String("remoteAddr", epnt.Address),
		slog.Time("t0", t0),
		slog.Time("t", cfg.TimeNow()),
	)
	return err
}
