package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollDeadline indicates the condition did not hold before the deadline.
var ErrPollDeadline = errors.New("poll deadline exceeded")

// Poll repeatedly invokes check at the given interval until it reports done,
// returns an error, the deadline elapses, or ctx is cancelled. A deadline of
// zero polls until ctx is cancelled.
//
// check returns (done, err): done=true stops polling with success; a non-nil
// err stops polling immediately. This replaces inline sleep-and-recheck loops
// against remote operation status with a single cancellable primitive.
func Poll(ctx context.Context, interval, deadline time.Duration, check func(context.Context) (bool, error)) error {
	if interval <= 0 {
		return errors.New("retry: poll interval must be positive")
	}

	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	// First check runs immediately, not after one interval.
	done, err := check(ctx)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %v", ErrPollDeadline, deadline)
			}
			return fmt.Errorf("poll cancelled: %w", ctx.Err())
		case <-ticker.C:
			done, err := check(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}
