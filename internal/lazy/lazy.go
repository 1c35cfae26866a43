// Package lazy provides a value that is fetched on first use and cached for
// the lifetime of its owner.
package lazy

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// FetchFunc produces the value. It is called at most once per successful
// resolution.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Value holds either nothing (unresolved) or the result of a successful
// fetch. Once resolved it never changes. A failed fetch leaves it
// unresolved so a later Get retries.
//
// Concurrent Get calls on an unresolved Value share a single in-flight
// fetch; all of them observe the same result.
type Value[T any] struct {
	fetch  FetchFunc[T]
	cached atomic.Pointer[T]
	group  singleflight.Group
}

// New returns an unresolved Value backed by fetch.
func New[T any](fetch FetchFunc[T]) *Value[T] {
	return &Value[T]{fetch: fetch}
}

// Get returns the cached value, fetching it first if needed.
//
// The shared fetch runs on a context detached from the caller's
// cancellation so one caller giving up does not fail the others; ctx still
// bounds how long this caller waits.
func (l *Value[T]) Get(ctx context.Context) (T, error) {
	if v := l.cached.Load(); v != nil {
		return *v, nil
	}

	ch := l.group.DoChan("fetch", func() (any, error) {
		if v := l.cached.Load(); v != nil {
			return *v, nil
		}
		v, err := l.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		l.cached.Store(&v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the cached value without fetching.
func (l *Value[T]) Peek() (T, bool) {
	if v := l.cached.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

// IsResolved reports whether a fetch has succeeded.
func (l *Value[T]) IsResolved() bool {
	return l.cached.Load() != nil
}
