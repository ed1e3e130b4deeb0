// Package retry provides the uniform retry policy applied by every stage
// that calls the external judgment source.
package retry

import (
	"context"
	"errors"
	"time"
)

// Permanent wraps an error that must not be retried (the call completed;
// retrying cannot change the outcome).
type Permanent struct {
	Err error
}

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

// Stop marks err as permanent.
func Stop(err error) error {
	return Permanent{Err: err}
}

// Policy describes how external calls are retried: how many attempts, the
// exponential delay schedule, and the per-call timeout. The zero value is
// not usable; construct with Default or explicit fields.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the first backoff delay; each subsequent delay doubles
	// (base, 2*base, 4*base, ...).
	BaseDelay time.Duration

	// CallTimeout bounds one attempt. A timed-out call counts as a failed
	// attempt.
	CallTimeout time.Duration

	// Sleep is injectable for tests; nil means a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the standard policy: 3 attempts, 1s/2s/4s backoff, 30s
// per call.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		CallTimeout: 30 * time.Second,
	}
}

// Do runs op under the policy. It returns the number of attempts made and
// the last error. Cancellation propagates into both the call and the
// backoff sleep: a cancelled run never waits for another attempt.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		attemptCtx := ctx
		cancel := func() {}
		if p.CallTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
		}
		err := op(attemptCtx)
		cancel()

		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		var perm Permanent
		if errors.As(err, &perm) {
			return attempt + 1, perm.Err
		}
		if ctx.Err() != nil {
			return attempt + 1, ctx.Err()
		}

		if attempt < attempts-1 {
			delay := p.BaseDelay << uint(attempt)
			if err := sleep(ctx, delay); err != nil {
				return attempt + 1, err
			}
		}
	}
	return attempts, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
