package ratelimit

import (
	"context"
	"encoding/json"
	"time"
)

// slidingState is the serialized request log for one (actor, action) pair.
// Timestamps are ascending unix microseconds; only entries inside the
// trailing window are retained.
type slidingState struct {
	Timestamps []int64 `json:"timestamps"`
}

// slidingWindow keeps the exact timestamps of admitted requests and admits a
// new one only while fewer than MaxRequests fall inside the trailing window.
// No boundary-reset burst is possible, which makes it the strictest of the
// three strategies and the reference choice for security-sensitive,
// low-frequency actions such as purchases.
type slidingWindow struct{}

func (slidingWindow) Evaluate(ctx context.Context, store CounterStore, key string, cfg Config, now time.Time) (Decision, error) {
	var dec Decision
	window := cfg.Window()
	cutoff := now.Add(-window).UnixMicro()

	_, err := store.Update(ctx, key, window, func(prev string, found bool) (string, error) {
		var st slidingState
		if found {
			if err := json.Unmarshal([]byte(prev), &st); err != nil {
				st = slidingState{}
			}
		}

		kept := st.Timestamps[:0]
		for _, ts := range st.Timestamps {
			if ts >= cutoff {
				kept = append(kept, ts)
			}
		}
		st.Timestamps = kept

		if len(st.Timestamps) < cfg.MaxRequests {
			st.Timestamps = append(st.Timestamps, now.UnixMicro())
			dec = allowed(int64(cfg.MaxRequests-len(st.Timestamps)), now)
		} else {
			// The rejected attempt is not logged; only admitted requests
			// count against the window.
			oldest := time.UnixMicro(st.Timestamps[0])
			dec = rejected(oldest.Add(window).Sub(now), now)
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
