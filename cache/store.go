package cache

import (
	"context"
	"time"
)

// Store is a bounded-lifetime key/value cache. The idempotency and
// rate-limit middleware receive one as a constructor argument so production
// can run Redis while tests use the in-memory implementation.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set unconditionally writes key with a TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes key only if absent, returning whether the write won.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Incr increments a counter, starting the window on first use, and
	// returns the new count plus the time left in the window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Delete removes a key.
	Delete(ctx context.Context, key string) error
}
