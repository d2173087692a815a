package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultCooldown = 5 * time.Second

// FailoverStore routes operations to a shared primary store and falls back to
// a process-local store when the primary is unreachable.
//
// A failed primary operation marks the backend degraded for a cool-down
// period; during that period every call goes straight to the local store
// without touching the primary. When the cool-down elapses the next call
// probes the primary and either resumes or extends the degradation. The
// transition into degradation fires onDegrade exactly once per episode, so
// the condition is reported once, not once per request.
//
// Callers never see the switch: the operation that hit the failure is replayed
// against the local store and returns a correct local answer.
type FailoverStore struct {
	primary CounterStore
	local   CounterStore

	cooldown time.Duration
	now      func() time.Time

	// onDegrade is invoked on the healthy-to-degraded transition with the
	// error that caused it. May be nil.
	onDegrade func(err error)

	mu            sync.Mutex
	degradedUntil time.Time
}

// FailoverOption configures a FailoverStore.
type FailoverOption func(*FailoverStore)

// WithCooldown sets how long the primary is benched after a failure.
func WithCooldown(d time.Duration) FailoverOption {
	return func(f *FailoverStore) { f.cooldown = d }
}

// WithDegradeCallback registers a hook fired once per degradation episode.
func WithDegradeCallback(fn func(err error)) FailoverOption {
	return func(f *FailoverStore) { f.onDegrade = fn }
}

// NewFailoverStore wraps primary with local as its fallback.
func NewFailoverStore(primary, local CounterStore, opts ...FailoverOption) *FailoverStore {
	f := &FailoverStore{
		primary:  primary,
		local:    local,
		cooldown: defaultCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get returns the value for key from whichever store is live.
func (f *FailoverStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.degraded() {
		return f.local.Get(ctx, key)
	}
	val, found, err := f.primary.Get(ctx, key)
	if err != nil {
		f.markDegraded(err)
		return f.local.Get(ctx, key)
	}
	return val, found, nil
}

// Set stores value under key.
func (f *FailoverStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.degraded() {
		return f.local.Set(ctx, key, value, ttl)
	}
	if err := f.primary.Set(ctx, key, value, ttl); err != nil {
		f.markDegraded(err)
		return f.local.Set(ctx, key, value, ttl)
	}
	return nil
}

// AtomicIncrement increments the counter at key.
func (f *FailoverStore) AtomicIncrement(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	if f.degraded() {
		return f.local.AtomicIncrement(ctx, key, amount, ttl)
	}
	val, err := f.primary.AtomicIncrement(ctx, key, amount, ttl)
	if err != nil {
		f.markDegraded(err)
		return f.local.AtomicIncrement(ctx, key, amount, ttl)
	}
	return val, nil
}

// Update atomically rewrites the value at key.
func (f *FailoverStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) (string, error) {
	if f.degraded() {
		return f.local.Update(ctx, key, ttl, fn)
	}
	next, err := f.primary.Update(ctx, key, ttl, fn)
	if err != nil {
		f.markDegraded(err)
		return f.local.Update(ctx, key, ttl, fn)
	}
	return next, nil
}

// Delete removes key from the live store.
func (f *FailoverStore) Delete(ctx context.Context, key string) error {
	if f.degraded() {
		return f.local.Delete(ctx, key)
	}
	if err := f.primary.Delete(ctx, key); err != nil {
		f.markDegraded(err)
		return f.local.Delete(ctx, key)
	}
	return nil
}

// Healthy reports the primary's health; the local store is always available,
// so the wrapper as a whole can always serve.
func (f *FailoverStore) Healthy(ctx context.Context) bool {
	if f.degraded() {
		return false
	}
	return f.primary.Healthy(ctx)
}

// Degraded reports whether the primary is currently benched.
func (f *FailoverStore) Degraded() bool {
	return f.degraded()
}

func (f *FailoverStore) degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now().Before(f.degradedUntil)
}

func (f *FailoverStore) markDegraded(err error) {
	f.mu.Lock()
	wasDegraded := f.now().Before(f.degradedUntil)
	f.degradedUntil = f.now().Add(f.cooldown)
	f.mu.Unlock()

	if !wasDegraded && f.onDegrade != nil {
		f.onDegrade(err)
	}
}
