// Package ratelimit guards the external judgment source against overload.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps judgment-source calls per unit time. Callers block on Wait
// once the cap is reached rather than failing immediately.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing callsPerMinute sustained calls with the
// given burst.
func New(callsPerMinute int, burst int) *Limiter {
	if callsPerMinute <= 0 {
		callsPerMinute = 50
	}
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), burst),
	}
}

// Wait blocks until a call is allowed or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call is allowed right now without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
