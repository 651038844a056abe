package rate

import (
	"context"
	"time"
)

// Limiter enforces fixed-window budgets over arbitrary string keys. Callers
// needing multi-dimensional admission (per-address plus per-identifier) call
// [Limiter.Allow] once per dimension and require every call to admit; the
// combination is the caller's responsibility, not the limiter's.
type Limiter struct {
	counter Counter
}

// New creates a [Limiter] on top of the given counting store.
func New(counter Counter) *Limiter {
	return &Limiter{counter: counter}
}

// Allow records one hit against key and reports whether the post-increment
// count stays within maxRequests for the current window. A denied call still
// consumes a slot. maxRequests < 1 or window <= 0 returns [ErrInvalidLimit].
func (l *Limiter) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error) {
	if maxRequests < 1 || window <= 0 {
		return false, ErrInvalidLimit
	}

	count, err := l.counter.Incr(ctx, key, window)
	if err != nil {
		return false, err
	}

	return count <= int64(maxRequests), nil
}

// Reset clears the named counters. Called after a successful authentication
// so earlier failures stop counting against the principal.
func (l *Limiter) Reset(ctx context.Context, keys ...string) error {
	return l.counter.Reset(ctx, keys...)
}

// LoginIdentifierKey builds the per-identifier login admission key.
func LoginIdentifierKey(identifier string) string {
	return "gl:" + identifier
}

// LoginAddressKey builds the per-address login admission key.
func LoginAddressKey(address string) string {
	return "gli:" + address
}

// RotateKey builds the per-token rotation admission key.
func RotateKey(tokenKey string) string {
	return "gr:" + tokenKey
}
