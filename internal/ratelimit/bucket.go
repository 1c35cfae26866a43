package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements Limiter with a single token bucket.
//
// The bucket refills at rate tokens per second up to burst. Each Wait takes
// one token, reserving a future one when the bucket is empty, so callers
// are released in arrival order.
type TokenBucket struct {
	rate  float64 // tokens added per second
	burst float64 // maximum tokens (bucket capacity)

	mu     sync.Mutex
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewTokenBucket creates a full bucket.
//   - rate: sustained requests per second
//   - burst: maximum burst size, at least 1
func NewTokenBucket(rate float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		now:    time.Now,
	}
}

// reserve takes a token and returns how long the caller must wait before
// using it.
func (b *TokenBucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if !b.last.IsZero() {
		b.tokens += now.Sub(b.last).Seconds() * b.rate
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
	}
	b.last = now

	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	// Negative tokens are reservations against future refills.
	return time.Duration(-b.tokens / b.rate * float64(time.Second))
}

// cancel returns a reserved token when its caller gave up waiting.
func (b *TokenBucket) cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens++
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
}

func (b *TokenBucket) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delay := b.reserve()
	if delay == 0 {
		return nil
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		b.cancel()
		return ctx.Err()
	}
}
