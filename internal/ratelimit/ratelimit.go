// Package ratelimit paces outgoing requests so a client stays under the
// request budget of the server it talks to.
package ratelimit

import "context"

// Limiter blocks until the next request may be sent.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Wait returns nil when the request may proceed, or ctx's error if ctx
	// ends first.
	Wait(ctx context.Context) error
}

// NoopLimiter permits every request immediately. Used when pacing is
// disabled.
type NoopLimiter struct{}

// Wait always returns nil.
func (NoopLimiter) Wait(context.Context) error { return nil }

// New returns a TokenBucket for a positive rate, else a NoopLimiter.
func New(rate float64, burst int) Limiter {
	if rate <= 0 {
		return NoopLimiter{}
	}
	return NewTokenBucket(rate, burst)
}
