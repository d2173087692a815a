package ratelimit

import (
	"fmt"
	"time"
)

// Strategy selects the admission algorithm for an action.
type Strategy string

const (
	TokenBucket   Strategy = "token_bucket"
	SlidingWindow Strategy = "sliding_window"
	FixedWindow   Strategy = "fixed_window"
)

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case TokenBucket, SlidingWindow, FixedWindow:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// Config describes the limit applied to a single action. Configs are
// immutable once registered; re-registering the same action replaces the
// previous config for all subsequent checks.
type Config struct {
	// Action is the unique name of the guarded operation, e.g. "pack_create".
	Action string

	// MaxRequests is the quota per window. Must be positive.
	MaxRequests int

	// WindowSeconds is the length of the quota window. Must be positive.
	WindowSeconds int

	// Strategy picks the admission algorithm.
	Strategy Strategy

	// Adaptive makes repeat violations inflate the abuse score faster.
	Adaptive bool

	// Cascading records a violation here against the action's configured
	// cascade targets as well. The target set is deployment configuration
	// (see WithCascades), not part of the per-action config.
	Cascading bool
}

// Window returns the quota window as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Validate reports whether the config is usable.
func (c Config) Validate() error {
	if c.Action == "" {
		return fmt.Errorf("config: action is required")
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("config %q: max requests must be positive", c.Action)
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("config %q: window seconds must be positive", c.Action)
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return fmt.Errorf("config %q: %w", c.Action, err)
	}
	return nil
}

// Reason explains why a decision came out the way it did. Callers use it to
// distinguish an ordinary quota rejection from a global abuse block or a
// configuration problem.
type Reason string

const (
	// ReasonOK marks an allowed request.
	ReasonOK Reason = "ok"

	// ReasonQuotaExceeded marks a normal per-action rejection.
	ReasonQuotaExceeded Reason = "quota_exceeded"

	// ReasonAbuseBlocked marks a rejection caused by the actor's abuse score
	// exceeding the block threshold, regardless of remaining quota.
	ReasonAbuseBlocked Reason = "abuse_blocked"

	// ReasonUnknownAction marks a fail-closed rejection for an action with no
	// registered config.
	ReasonUnknownAction Reason = "unknown_action"
)

// Decision is the outcome of a single CheckLimit call.
type Decision struct {
	Allowed    bool
	Reason     Reason
	Remaining  int64
	RetryAfter time.Duration
	ResetTime  time.Time
}

// ViolationRecord captures a single rejection for abuse tracking. Records are
// append-only and pruned by the scorer's retention policy.
type ViolationRecord struct {
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType classifies events delivered to the ViolationSink.
type EventType string

const (
	EventRateLimitExceeded  EventType = "rate_limit_exceeded"
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventStoreDegraded      EventType = "store_degraded"
	EventConfigError        EventType = "config_error"
)

// Event is the structured payload delivered to a ViolationSink.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action,omitempty"`
	Score          float64   `json:"score,omitempty"`
	ViolationCount int       `json:"violation_count,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
