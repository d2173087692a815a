package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

const (
	defaultCleanupInterval = time.Minute
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process CounterStore backed by a Go map.
//
// It is safe for concurrent use by multiple goroutines, but its state is
// local to the process and is not shared across replicas. Use RedisStore
// (typically behind a FailoverStore) when you need a single global limit
// across multiple instances.
//
// Expired entries are dropped lazily on access and swept periodically by a
// background cleanup loop. Call Stop when the store is no longer needed to
// terminate the loop.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	now       func() time.Time
	stopCh    chan struct{}
	stoppedCh chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMemoryStore constructs a MemoryStore with empty state and starts its
// cleanup loop.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		entries:   make(map[string]memoryEntry),
		now:       time.Now,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	m.startOnce.Do(func() {
		go m.cleanupLoop(defaultCleanupInterval)
	})
	return m
}

// Get returns the value for key and whether it exists.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key with the given ttl.
func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: m.deadline(ttl)}
	return nil
}

// AtomicIncrement adds amount to the integer counter at key and returns the
// new value. The ttl is applied only when the key is created; an existing
// key keeps its original expiry, matching counter semantics where the window
// is anchored at the first hit.
func (m *MemoryStore) AtomicIncrement(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		m.entries[key] = memoryEntry{
			value:     strconv.FormatInt(amount, 10),
			expiresAt: m.deadline(ttl),
		}
		return amount, nil
	}
	current, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, err
	}
	next := current + amount
	e.value = strconv.FormatInt(next, 10)
	m.entries[key] = e
	return next, nil
}

// Update atomically replaces the value at key with the result of fn. The
// store mutex makes the read-modify-write a single step, so fn runs at most
// once per call.
func (m *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	next, err := fn(e.value, ok)
	if err != nil {
		return "", err
	}
	m.entries[key] = memoryEntry{value: next, expiresAt: m.deadline(ttl)}
	return next, nil
}

// Delete removes key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Healthy always reports true; local memory has no failure mode short of
// process death.
func (m *MemoryStore) Healthy(ctx context.Context) bool {
	return true
}

// Stop terminates the cleanup loop.
func (m *MemoryStore) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		<-m.stoppedCh
	})
}

// live returns the entry for key, dropping it when expired. Caller holds mu.
func (m *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(m.stoppedCh)

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryStore) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
