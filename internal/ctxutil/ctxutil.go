// Package ctxutil provides context utility functions.
package ctxutil

import (
	"context"
	"time"
)

// Canceled checks if the context has been canceled or exceeded its deadline.
// Returns the context error if done (Canceled or DeadlineExceeded), nil otherwise.
// This is a common pattern used throughout the codebase to check
// for cancellation at function entry points.
//
// The implementation directly returns ctx.Err() because it already returns nil
// if Done is not yet closed - no select with default case is needed.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}

// Sleep waits for d or until the context is done, whichever comes first.
// Returns the context error when interrupted, nil when the full duration
// elapsed. Used by the retry loop so backoff waits stay cancellable.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
