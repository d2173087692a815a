package ratelimit

import (
	"context"
	"encoding/json"
	"time"
)

// bucketState is the serialized token bucket for one (actor, action) pair.
type bucketState struct {
	Tokens     float64 `json:"tokens"`
	LastRefill int64   `json:"last_refill"` // unix microseconds
}

// tokenBucket refills MaxRequests tokens per window and spends one per
// allowed request. A never-seen pair starts with a full bucket, so the first
// burst up to the limit always goes through; that is intentional and covers
// legitimate burst behavior such as a client firing several calls right
// after startup.
type tokenBucket struct{}

func (tokenBucket) Evaluate(ctx context.Context, store CounterStore, key string, cfg Config, now time.Time) (Decision, error) {
	var dec Decision
	max := float64(cfg.MaxRequests)
	refillPerSec := max / float64(cfg.WindowSeconds)

	// The state must outlive idle gaps shorter than a few windows or the
	// partial refill is lost, so the TTL is a multiple of the window.
	ttl := 3 * cfg.Window()

	_, err := store.Update(ctx, key, ttl, func(prev string, found bool) (string, error) {
		st := bucketState{Tokens: max, LastRefill: now.UnixMicro()}
		if found {
			if err := json.Unmarshal([]byte(prev), &st); err != nil {
				// Unreadable state is treated as absent rather than poisoning
				// the key forever.
				st = bucketState{Tokens: max, LastRefill: now.UnixMicro()}
			} else {
				elapsed := now.Sub(time.UnixMicro(st.LastRefill))
				if elapsed < 0 {
					elapsed = 0
				}
				st.Tokens += elapsed.Seconds() * refillPerSec
				if st.Tokens > max {
					st.Tokens = max
				}
				st.LastRefill = now.UnixMicro()
			}
		}

		if st.Tokens >= 1 {
			st.Tokens -= 1
			dec = allowed(int64(st.Tokens), now)
		} else {
			missing := 1 - st.Tokens
			wait := time.Duration(missing / refillPerSec * float64(time.Second))
			dec = rejected(wait, now)
		}

		out, err := json.Marshal(st)
		if err != nil {
			return "", err
		}
		return string(out), nil
	})
	if err != nil {
		return Decision{}, err
	}
	return dec, nil
}
