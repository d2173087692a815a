package ratelimit

import (
	"context"
	"time"
)

// UpdateFunc computes the next serialized state for a key from the previous
// one. found is false when the key does not exist (or has expired). The
// function may be retried by stores that use optimistic concurrency, so it
// must be free of side effects.
type UpdateFunc func(prev string, found bool) (next string, err error)

// CounterStore is the key/value substrate rate limit state lives in. All
// operations are atomic with respect to concurrent callers on the same key;
// callers never hold locks of their own.
//
// Values are opaque strings. Fixed counters use AtomicIncrement; structured
// strategy state (token balances, timestamp windows) goes through Update,
// which performs an atomic read-modify-write.
//
// A ttl of zero means the key does not expire. Stores that support TTLs
// apply the ttl when the key is created and refresh it on Update and Set.
type CounterStore interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key with the given ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// AtomicIncrement adds amount to the integer counter at key and returns
	// the new value. The ttl is applied only when the key is created.
	AtomicIncrement(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)

	// Update atomically replaces the value at key with the result of fn and
	// returns the stored value.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) (string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Healthy reports whether the store can currently serve operations.
	Healthy(ctx context.Context) bool
}
