package connector

import (
	"context"
	"time"
)

// SleepCtx waits for d or until ctx is cancelled, whichever comes first.
// Retry waits and inter-operation sleeps both go through here so the whole
// fleet stops promptly on cancellation.
func SleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
