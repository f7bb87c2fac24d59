// Package wait provides the bounded polling used in place of fixed sleeps.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrTimeout is wrapped by every error returned when a condition never held.
var ErrTimeout = errors.New("wait: condition not met before timeout")

// Options bound a poll. Interval is the minimum spacing between condition checks.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Condition reports whether the awaited state holds. A non-nil error does not
// stop the poll; the last one is attached to the timeout error.
type Condition func(ctx context.Context) (bool, error)

// Until checks cond until it returns true, the timeout elapses or ctx is done.
// The first check happens immediately.
func Until(ctx context.Context, opts Options, cond Condition) error {
	if opts.Timeout <= 0 {
		return fmt.Errorf("wait: timeout must be positive, got %s", opts.Timeout)
	}
	interval := opts.Interval
	if interval <= 0 || interval > opts.Timeout {
		interval = opts.Timeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var lastErr error
	for {
		if err := limiter.Wait(waitCtx); err != nil {
			return timeoutOrCancel(ctx, opts.Timeout, lastErr)
		}
		ok, err := cond(waitCtx)
		if ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if waitCtx.Err() != nil {
			return timeoutOrCancel(ctx, opts.Timeout, lastErr)
		}
	}
}

func timeoutOrCancel(parent context.Context, timeout time.Duration, lastErr error) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if lastErr != nil {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, lastErr)
	}
	return fmt.Errorf("%w after %s", ErrTimeout, timeout)
}

// IsTimeout reports whether err came from a poll that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
