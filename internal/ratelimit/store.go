package ratelimit

import (
	"context"
	"time"
)

// CounterStore tracks rolling-window counters. A counter is keyed by
// (subject, action, window); it resets to zero when its window elapses.
//
// The redis implementation enforces limits cluster-wide; the in-memory
// implementation is only suitable for a single-instance deployment.
type CounterStore interface {
	// Count returns the current count and the time the window resets.
	// A missing counter reports zero with a reset one window from now.
	Count(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
	// Incr increments the counter, starting a new window when none is
	// active, and returns the new count and reset time.
	Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
	// Decr gives one increment back when a consumed attempt is ultimately
	// denied. Decrementing a missing or expired counter is a no-op.
	Decr(ctx context.Context, key string) error
}
