package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// strategy evaluates a single check against stored state. Implementations
// are stateless; everything they need arrives as arguments, and all stored
// state flows through the CounterStore so atomicity is the store's problem,
// not the strategy's.
type strategy interface {
	Evaluate(ctx context.Context, store CounterStore, key string, cfg Config, now time.Time) (Decision, error)
}

func strategyFor(s Strategy) (strategy, error) {
	switch s {
	case TokenBucket:
		return tokenBucket{}, nil
	case SlidingWindow:
		return slidingWindow{}, nil
	case FixedWindow:
		return fixedWindow{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", s)
	}
}

// stateKey builds the namespaced storage key for an (actor, action) pair.
// Two different actions for the same actor never share state.
func stateKey(action, actorID string) string {
	return "rl:" + action + ":" + actorID
}

func allowed(remaining int64, now time.Time) Decision {
	return Decision{
		Allowed:   true,
		Reason:    ReasonOK,
		Remaining: remaining,
		ResetTime: now,
	}
}

func rejected(retryAfter time.Duration, now time.Time) Decision {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{
		Allowed:    false,
		Reason:     ReasonQuotaExceeded,
		RetryAfter: retryAfter,
		ResetTime:  now.Add(retryAfter),
	}
}
