// Package helpers contains small utilities shared by the harness packages.
package helpers

import (
	"context"
	"errors"
	"time"
)

// PollUntil calls testFn once immediately and then at each interval until it returns true, it
// returns an error, or the timeout elapses.
//
// The context passed to testFn expires at the timeout, so a slow check cannot run past it. The
// exception is a timeout of zero or less: testFn is then called exactly once, with ctx.
// PollUntil returns (false, nil) on timeout; it returns an error only if testFn does or if ctx
// itself is done.
func PollUntil(
	ctx context.Context,
	timeout time.Duration,
	interval time.Duration,
	testFn func(context.Context) (bool, error),
) (bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for attempt := 0; ; attempt++ {
		checkCtx := pollCtx
		if attempt == 0 && timeout <= 0 {
			checkCtx = ctx
		}
		ok, err := testFn(checkCtx)
		switch {
		case ctx.Err() != nil:
			return false, ctx.Err()
		case err != nil && !errors.Is(err, context.DeadlineExceeded):
			return false, err
		case ok:
			return true, nil
		}
		if pollCtx.Err() != nil {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-pollCtx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}
