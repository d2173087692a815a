package ratelimit

import "sync"

// Registry maps action names to their limit configs. It is read-mostly:
// lookups happen on every check, registrations are rare, so a read/write
// lock fits. Registration is an upsert; concurrent registrations of the same
// action are last-write-wins.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[string]Config)}
}

// Register validates cfg and upserts it. It takes effect for all subsequent
// checks; in-flight checks that already read the old config are unaffected.
func (r *Registry) Register(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.configs[cfg.Action] = cfg
	r.mu.Unlock()
	return nil
}

// Lookup returns the config for action and whether one is registered.
func (r *Registry) Lookup(action string) (Config, bool) {
	r.mu.RLock()
	cfg, ok := r.configs[action]
	r.mu.RUnlock()
	return cfg, ok
}

// Actions returns the registered action names.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	return names
}

// DefaultLimits is the seed action table. Purchases use the strict sliding
// window, bursty traffic uses token buckets, and login hammering uses cheap
// fixed windows.
func DefaultLimits() []Config {
	return []Config{
		{Action: "pack_create", MaxRequests: 5, WindowSeconds: 3600, Strategy: TokenBucket, Adaptive: true},
		{Action: "pack_purchase", MaxRequests: 10, WindowSeconds: 86400, Strategy: SlidingWindow, Adaptive: true},
		{Action: "payment", MaxRequests: 5, WindowSeconds: 3600, Strategy: TokenBucket, Adaptive: true},
		{Action: "api_call", MaxRequests: 100, WindowSeconds: 60, Strategy: TokenBucket},
		{Action: "login_attempt", MaxRequests: 10, WindowSeconds: 900, Strategy: FixedWindow},
		{Action: "failed_login", MaxRequests: 5, WindowSeconds: 900, Strategy: FixedWindow, Adaptive: true},
	}
}
