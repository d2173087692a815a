package ratelimit

import (
	"context"
	"encoding/json"
	"time"
)

// fixedState is the serialized counter for one (actor, action) pair.
type fixedState struct {
	WindowStart int64 `json:"window_start"` // unix seconds, aligned to the window
	Count       int   `json:"count"`
}

// fixedWindow counts requests inside wall-clock-aligned windows and resets
// the counter at each boundary. Cheapest of the three; it accepts a
// worst-case 2x burst straddling a boundary, which is acceptable for coarse
// anti-hammering actions such as login attempts.
type fixedWindow struct{}

func (fixedWindow) Evaluate(ctx context.Context, store CounterStore, key string, cfg Config, now time.Time) (Decision, error) {
	var dec Decision
	window := cfg.Window()
	ws := int64(cfg.WindowSeconds)
	currentStart := (now.Unix() / ws) * ws

	_, err := store.Update(ctx, key, window, func(prev string, found bool) (string, error) {
		var st fixedState
		if found {
			if err := json.Unmarshal([]byte(prev), &st); err != nil {
				st = fixedState{}
			}
		}
		if st.WindowStart != currentStart {
			st.WindowStart = currentStart
			st.Count = 0
		}

		if st.Count < cfg.MaxRequests {
			st.Count++
			dec = allowed(int64(cfg.MaxRequests-st.Count), now)
		} else {
			reset := time.Unix(currentStart, 0).Add(window)
			dec = rejected(reset.Sub(now), now)
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
