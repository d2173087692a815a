// Package ratelimit decides, for every (actor, action) pair, whether an
// attempt is permitted right now, and tracks behavioral patterns that
// indicate abuse across time.
//
// The primary entry point is the Limiter facade:
//
//	dec := limiter.CheckLimit(ctx, actorID, action)
//
// The returned Decision says whether the attempt is allowed, why not when it
// isn't, how much quota remains, and how long the caller should wait before
// retrying.
//
// # Overview
//
// Every guarded action is registered with a Config: a quota (MaxRequests per
// WindowSeconds) and one of three admission strategies with different
// fairness/burst tradeoffs:
//
//   - TokenBucket: refills continuously, permits an initial burst up to the
//     limit. Good for bursty but well-intentioned traffic (API calls).
//   - SlidingWindow: tracks exact request timestamps; the strictest option,
//     with no boundary bursts. Use for security-sensitive, low-frequency
//     actions (purchases).
//   - FixedWindow: a plain counter per aligned window. Cheapest; tolerates a
//     2x burst across a boundary. Use for coarse anti-hammering (logins).
//
// Independent of per-action quotas, the engine maintains a per-actor abuse
// score. Every rejection records a violation; repeat violations inside a
// recency window inflate the score faster on actions marked Adaptive. An
// actor whose score passes the block threshold is rejected on every action,
// with Reason ReasonAbuseBlocked, until an operator resets the score.
//
// # Decisions, never errors
//
// CheckLimit always returns a usable Decision. An unregistered action is
// rejected (fail closed) with ReasonUnknownAction. Counter store outages
// never reject a request on their own: with WithSharedStore the engine falls
// back to a process-local store transparently and reports the degradation
// once per episode.
//
// # Backends
//
// State lives behind the CounterStore interface:
//
//   - MemoryStore: in-process, mutex-guarded, TTL-expiring map. Default.
//   - RedisStore: shared state for multi-process deployments, with atomic
//     per-key operations (Lua increments, WATCH transactions).
//   - FailoverStore: routes to a primary and falls back to a local store
//     while the primary is benched for a cool-down.
//
// Keys follow the scheme "rl:{action}:{actor_id}" and carry TTLs so state
// for inactive actors expires on its own.
//
// # Observability
//
// Structured violation and operational events (rate_limit_exceeded,
// suspicious_activity, store_degraded, config_error) are delivered to a
// caller-provided ViolationSink, best-effort; ZapSink is a bundled
// implementation. Metrics flow through the MetricsRecorder interface, with
// NoOpMetricsRecorder as the default and PrometheusRecorder bundled.
//
// # Usage
//
//	l, err := ratelimit.New(
//		ratelimit.WithSharedStore(ratelimit.NewRedisStore(client)),
//		ratelimit.WithLogger(log),
//		ratelimit.WithSink(ratelimit.NewZapSink(log)),
//	)
//	if err != nil {
//		return err
//	}
//	defer l.Close()
//
//	dec := l.CheckLimit(ctx, userID, "pack_purchase")
//	if !dec.Allowed {
//		// surface dec.RetryAfter to the user and refuse the action
//	}
//
// Deployment configuration (the action table and the cascade map) can also
// be loaded from YAML via LoadConfigFile.
package ratelimit
