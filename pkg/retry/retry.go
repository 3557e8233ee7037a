package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy describes a retry schedule.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff is the wait after a failed attempt before the next one.
	Backoff time.Duration

	// Settle is the wait after the before-hook re-established the
	// destination and before the retried attempt is sent.
	Settle time.Duration

	// Jitter spreads Backoff by ±Jitter (0.2 = ±20%). Zero keeps it fixed.
	Jitter float64
}

// DefaultPolicy returns three attempts with a fixed 500ms backoff and a
// 100ms settle delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
		Settle:      100 * time.Millisecond,
	}
}

// Delay returns the backoff to wait after a failed attempt.
func (p Policy) Delay() time.Duration {
	if p.Jitter <= 0 || p.Backoff <= 0 {
		return p.Backoff
	}
	jitter := float64(p.Backoff) * p.Jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(p.Backoff) + jitter)
}

// Func is one attempt. n starts at 1.
type Func func(ctx context.Context, n int) error

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, the context ends,
// or the policy is exhausted. before, when non-nil, runs ahead of every
// attempt after the first and is followed by the settle delay; a failing
// before counts as a failed attempt.
func Do(ctx context.Context, p Policy, before, op Func) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			if err := sleep(ctx, p.Delay()); err != nil {
				return err
			}
			if before != nil {
				if err := before(ctx, n); err != nil {
					lastErr = err
					continue
				}
				if err := sleep(ctx, p.Settle); err != nil {
					return err
				}
			}
		}

		err := op(ctx, n)
		if err == nil {
			return nil
		}

		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err
	}

	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
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
