package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Stop()

	if err := store.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, found, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || val != "v" {
		t.Errorf("Expected (v, true), got (%q, %v)", val, found)
	}

	_, found, _ = store.Get(ctx, "missing")
	if found {
		t.Error("Expected missing key to report not found")
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)
	defer store.Stop()

	store.Set(ctx, "k", "v", time.Minute)

	if _, found, _ := store.Get(ctx, "k"); !found {
		t.Fatal("Key should exist before the TTL elapses")
	}

	clock.Advance(time.Minute + time.Second)

	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("Key should have expired after the TTL")
	}
}

func TestMemoryStore_AtomicIncrement_TTLOnlyOnCreate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)
	defer store.Stop()

	if v, _ := store.AtomicIncrement(ctx, "c", 1, time.Minute); v != 1 {
		t.Fatalf("Expected first increment to return 1, got %d", v)
	}

	clock.Advance(30 * time.Second)
	// The second increment must not push the expiry out.
	if v, _ := store.AtomicIncrement(ctx, "c", 1, time.Minute); v != 2 {
		t.Fatalf("Expected second increment to return 2, got %d", v)
	}

	clock.Advance(31 * time.Second)
	if _, found, _ := store.Get(ctx, "c"); found {
		t.Error("Counter should have expired relative to its creation, not its last increment")
	}
}

// Race test: concurrent increments on one key must not lose updates.
func TestMemoryStore_AtomicIncrement_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Stop()

	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		go func() {
			defer wg.Done()
			store.AtomicIncrement(ctx, "c", 1, 0)
		}()
	}
	wg.Wait()

	val, _, _ := store.Get(ctx, "c")
	if val != "100" {
		t.Errorf("Expected counter to reach 100, got %s", val)
	}
}

func TestMemoryStore_Update_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Stop()

	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()
			store.Update(ctx, "k", 0, func(prev string, found bool) (string, error) {
				n := 0
				if found {
					n, _ = strconv.Atoi(prev)
				}
				return strconv.Itoa(n + 1), nil
			})
		}()
	}
	wg.Wait()

	val, _, _ := store.Get(ctx, "k")
	if val != "50" {
		t.Errorf("Expected 50 after 50 atomic updates, got %s", val)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Stop()

	store.Set(ctx, "k", "v", 0)
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("Key should be gone after Delete")
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("Deleting a missing key should not error: %v", err)
	}
}

func TestMemoryStore_CleanupSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newTestStore(clock)
	defer store.Stop()

	store.Set(ctx, "a", "1", time.Second)
	store.Set(ctx, "b", "2", 0)
	clock.Advance(2 * time.Second)
	store.cleanup()

	store.mu.Lock()
	_, hasA := store.entries["a"]
	_, hasB := store.entries["b"]
	store.mu.Unlock()

	if hasA {
		t.Error("Sweep should have removed the expired entry")
	}
	if !hasB {
		t.Error("Sweep must keep entries without a TTL")
	}
}
