package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClock is a controllable time source for deterministic strategy tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestStore returns a MemoryStore driven by the given clock, without the
// background cleanup loop interfering (it still runs, but on wall time).
func newTestStore(clock *fakeClock) *MemoryStore {
	store := NewMemoryStore()
	store.now = clock.Now
	return store
}

var errStoreDown = errors.New("store down")

// downStore is a CounterStore that fails every operation, simulating an
// unreachable shared backend.
type downStore struct{}

func (downStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errStoreDown
}
func (downStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errStoreDown
}
func (downStore) AtomicIncrement(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	return 0, errStoreDown
}
func (downStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) (string, error) {
	return "", errStoreDown
}
func (downStore) Delete(ctx context.Context, key string) error { return errStoreDown }

func (downStore) Healthy(ctx context.Context) bool { return false }

// captureSink records every event it receives.
type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error // returned from Record when set
}

func (s *captureSink) Record(ctx context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return s.err
}

func (s *captureSink) byType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// mockRecorder captures metrics in memory for assertion.
type mockRecorder struct {
	mu       sync.Mutex
	counters map[string]float64
	timings  map[string][]float64
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		counters: make(map[string]float64),
		timings:  make(map[string][]float64),
	}
}

func (m *mockRecorder) Add(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	m.counters[name] += value
	m.mu.Unlock()
}

func (m *mockRecorder) Observe(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	m.timings[name] = append(m.timings[name], value)
	m.mu.Unlock()
}

func (m *mockRecorder) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}
