package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Limiter is the engine facade. A single CheckLimit call runs the abuse gate,
// resolves the action's config, evaluates the configured strategy against the
// counter store, and records violations (plus cascades) on rejection.
//
// CheckLimit never returns an error: configuration problems fail closed as
// rejections, storage problems fail open through the failover layer, and the
// caller always gets a decision.
type Limiter struct {
	registry *Registry
	store    CounterStore
	scorer   *AbuseScorer
	sink     ViolationSink
	recorder MetricsRecorder
	log      *zap.Logger
	cascades map[string][]string
	now      func() time.Time

	ownedLocal *MemoryStore
}

// New constructs a Limiter seeded with DefaultLimits. Options extend or
// replace the defaults; an invalid config in WithLimits fails construction.
func New(opts ...Option) (*Limiter, error) {
	o := limiterOptions{
		recorder: NoOpMetricsRecorder{},
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	l := &Limiter{
		registry: NewRegistry(),
		scorer:   NewAbuseScorer(),
		sink:     o.sink,
		recorder: o.recorder,
		log:      o.log,
		cascades: o.cascades,
		now:      o.now,
	}
	l.scorer.now = o.now

	for _, cfg := range DefaultLimits() {
		if err := l.registry.Register(cfg); err != nil {
			return nil, err
		}
	}
	for _, cfg := range o.limits {
		if err := l.registry.Register(cfg); err != nil {
			return nil, err
		}
	}

	switch {
	case o.store != nil:
		l.store = o.store
	case o.shared != nil:
		local := NewMemoryStore()
		local.now = o.now
		l.ownedLocal = local
		fopts := append([]FailoverOption{WithDegradeCallback(l.onStoreDegraded)}, o.failoverOpts...)
		failover := NewFailoverStore(o.shared, local, fopts...)
		failover.now = o.now
		l.store = failover
	default:
		local := NewMemoryStore()
		local.now = o.now
		l.ownedLocal = local
		l.store = local
	}

	return l, nil
}

// CheckLimit decides whether actorID may perform action right now.
func (l *Limiter) CheckLimit(ctx context.Context, actorID, action string) Decision {
	start := time.Now()
	tags := map[string]string{"action": action}
	l.recorder.Add("ratelimit.check", 1, tags)
	defer func() {
		l.recorder.Observe("ratelimit.latency", time.Since(start).Seconds(), tags)
	}()

	// Global block overrides per-action quota; the strategy is not consulted.
	if l.scorer.Blocked(actorID) {
		l.denied(action, ReasonAbuseBlocked)
		return Decision{Reason: ReasonAbuseBlocked, ResetTime: l.now()}
	}

	cfg, ok := l.registry.Lookup(action)
	if !ok {
		// Unknown actions fail closed; an unguarded action slipping through
		// silently would defeat the engine entirely.
		l.log.Error("check against unregistered action",
			zap.String("action", action),
			zap.String("actor_id", actorID))
		l.emit(ctx, Event{Type: EventConfigError, ActorID: actorID, Action: action})
		l.denied(action, ReasonUnknownAction)
		return Decision{Reason: ReasonUnknownAction, ResetTime: l.now()}
	}

	strat, err := strategyFor(cfg.Strategy)
	if err != nil {
		// Registry validation makes this unreachable; fail closed regardless.
		l.log.Error("unknown strategy for action", zap.String("action", action), zap.Error(err))
		l.denied(action, ReasonUnknownAction)
		return Decision{Reason: ReasonUnknownAction, ResetTime: l.now()}
	}

	now := l.now()
	dec, err := strat.Evaluate(ctx, l.store, stateKey(action, actorID), cfg, now)
	if err != nil {
		// Residual storage errors past the failover layer are infrastructure
		// noise, not actor behavior. Fail open.
		l.log.Error("strategy evaluation failed",
			zap.String("action", action),
			zap.String("actor_id", actorID),
			zap.Error(err))
		l.recorder.Add("ratelimit.store_error", 1, tags)
		return Decision{Allowed: true, Reason: ReasonOK, ResetTime: now}
	}

	if !dec.Allowed {
		l.denied(action, dec.Reason)
		l.recordViolation(ctx, actorID, action, cfg.Adaptive)
		if cfg.Cascading {
			for _, target := range l.cascades[action] {
				adaptive := false
				if tcfg, ok := l.registry.Lookup(target); ok {
					adaptive = tcfg.Adaptive
				}
				l.recordViolation(ctx, actorID, target, adaptive)
			}
		}
	}
	return dec
}

// RegisterLimit validates and upserts a config at runtime. It takes effect
// for all subsequent checks.
func (l *Limiter) RegisterLimit(cfg Config) error {
	return l.registry.Register(cfg)
}

// GetAbuseScore returns the actor's current abuse score.
func (l *Limiter) GetAbuseScore(actorID string) float64 {
	return l.scorer.Score(actorID)
}

// ResetAbuseScore zeroes the actor's score and clears its violation history.
// Operator action only.
func (l *Limiter) ResetAbuseScore(actorID string) {
	l.scorer.Reset(actorID)
}

// GetViolationHistory returns the actor's violations, oldest first.
func (l *Limiter) GetViolationHistory(actorID string) []ViolationRecord {
	return l.scorer.History(actorID)
}

// IsBlocked reports whether the actor is globally blocked.
func (l *Limiter) IsBlocked(actorID string) bool {
	return l.scorer.Blocked(actorID)
}

// Close releases resources the limiter created itself (the local memory
// store's cleanup loop). Stores passed in by the caller are the caller's to
// close.
func (l *Limiter) Close() {
	if l.ownedLocal != nil {
		l.ownedLocal.Stop()
	}
}

func (l *Limiter) recordViolation(ctx context.Context, actorID, action string, adaptive bool) {
	score, count, crossed := l.scorer.RecordViolation(actorID, action, adaptive)
	l.emit(ctx, Event{
		Type:           EventRateLimitExceeded,
		ActorID:        actorID,
		Action:         action,
		Score:          score,
		ViolationCount: count,
	})
	if crossed {
		l.log.Warn("actor crossed abuse block threshold",
			zap.String("actor_id", actorID),
			zap.Float64("score", score),
			zap.Int("violations", count))
		l.emit(ctx, Event{
			Type:           EventSuspiciousActivity,
			ActorID:        actorID,
			Action:         action,
			Score:          score,
			ViolationCount: count,
		})
	}
}

// onStoreDegraded fires once per degradation episode (FailoverStore contract).
func (l *Limiter) onStoreDegraded(err error) {
	l.log.Warn("shared counter store unreachable, serving from local store", zap.Error(err))
	l.recorder.Add("ratelimit.fallback", 1, nil)
	l.emit(context.Background(), Event{Type: EventStoreDegraded})
}

// emit delivers an event to the sink, best-effort. Sink failures never affect
// the decision.
func (l *Limiter) emit(ctx context.Context, ev Event) {
	if l.sink == nil {
		return
	}
	ev.ID = uuid.NewString()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}
	if err := l.sink.Record(ctx, ev); err != nil {
		l.log.Debug("violation sink error", zap.Error(err))
	}
}

func (l *Limiter) denied(action string, reason Reason) {
	l.recorder.Add("ratelimit.denied", 1, map[string]string{
		"action": action,
		"reason": string(reason),
	})
}
