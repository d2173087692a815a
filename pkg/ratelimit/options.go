package ratelimit

import (
	"time"

	"go.uber.org/zap"
)

type limiterOptions struct {
	store        CounterStore
	shared       CounterStore
	failoverOpts []FailoverOption
	sink         ViolationSink
	recorder     MetricsRecorder
	log          *zap.Logger
	now          func() time.Time
	cascades     map[string][]string
	limits       []Config
}

// Option configures a Limiter.
type Option func(*limiterOptions)

// WithStore replaces the counter store entirely, including any failover
// wrapping. Use WithSharedStore instead when you want the shared store to
// fall back to local memory automatically.
func WithStore(store CounterStore) Option {
	return func(o *limiterOptions) { o.store = store }
}

// WithSharedStore uses shared (typically a RedisStore) as the primary
// counter store, wrapped in a FailoverStore over a fresh local MemoryStore.
// When the shared store is unreachable, checks are answered locally and the
// degradation is reported once per episode through the logger and sink.
func WithSharedStore(shared CounterStore, opts ...FailoverOption) Option {
	return func(o *limiterOptions) {
		o.shared = shared
		o.failoverOpts = opts
	}
}

// WithSink registers the violation sink events are delivered to.
func WithSink(sink ViolationSink) Option {
	return func(o *limiterOptions) { o.sink = sink }
}

// WithRecorder injects a custom metrics backend.
func WithRecorder(r MetricsRecorder) Option {
	return func(o *limiterOptions) { o.recorder = r }
}

// WithLogger sets the engine logger. Defaults to zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(o *limiterOptions) { o.log = log }
}

// WithNow injects the time source used for every decision. Defaults to
// time.Now; tests inject a controlled clock.
func WithNow(now func() time.Time) Option {
	return func(o *limiterOptions) { o.now = now }
}

// WithCascades provides the deployment's cascade map: a violation on an
// action whose config has Cascading set also records a violation against
// every action listed under it here. The engine invents no relationships of
// its own.
func WithCascades(cascades map[string][]string) Option {
	return func(o *limiterOptions) { o.cascades = cascades }
}

// WithLimits registers configs on top of the defaults (upsert by action).
func WithLimits(cfgs ...Config) Option {
	return func(o *limiterOptions) { o.limits = append(o.limits, cfgs...) }
}
