package ratelimit

import (
	"testing"
	"time"
)

func newTestScorer(clock *fakeClock) *AbuseScorer {
	s := NewAbuseScorer()
	s.now = clock.Now
	return s
}

func TestAbuseScorer_NonAdaptiveScore(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	// 5 violations on a non-adaptive action in under an hour: flat 10 each.
	for i := 0; i < 5; i++ {
		scorer.RecordViolation("user_1", "login_attempt", false)
		clock.Advance(time.Minute)
	}

	if got := scorer.Score("user_1"); got != 50.0 {
		t.Errorf("Expected score of exactly 50.0, got %v", got)
	}
}

func TestAbuseScorer_AdaptiveEscalation(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	// Adaptive increments scale with prior violations in the recency window:
	// 10*(1+0*0.5) + 10*(1+1*0.5) + 10*(1+2*0.5) = 10 + 15 + 20 = 45.
	for i := 0; i < 3; i++ {
		scorer.RecordViolation("user_1", "payment", true)
		clock.Advance(time.Minute)
	}

	if got := scorer.Score("user_1"); got != 45.0 {
		t.Errorf("Expected score of exactly 45.0, got %v", got)
	}
}

func TestAbuseScorer_RecencyWindowExcludesOldViolations(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	scorer.RecordViolation("user_1", "payment", true) // +10
	clock.Advance(2 * time.Hour)

	// The earlier violation is outside the 1h recency window, so the
	// multiplier resets to the base increment.
	score, _, _ := scorer.RecordViolation("user_1", "payment", true) // +10
	if score != 20.0 {
		t.Errorf("Expected score of exactly 20.0, got %v", score)
	}
}

func TestAbuseScorer_BlockThresholdEdgeTriggered(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	crossings := 0
	// 15 flat violations: the score passes 100 at the 11th.
	for i := 0; i < 15; i++ {
		_, _, crossed := scorer.RecordViolation("user_1", "api_call", false)
		if crossed {
			crossings++
		}
		clock.Advance(time.Second)
	}

	if crossings != 1 {
		t.Errorf("Threshold crossing must fire exactly once, fired %d times", crossings)
	}
	if !scorer.Blocked("user_1") {
		t.Error("Actor with score above the threshold must be blocked")
	}
}

func TestAbuseScorer_ScoreAtThresholdNotBlocked(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	// Exactly 100.0: the block requires score strictly greater than the
	// threshold.
	for i := 0; i < 10; i++ {
		scorer.RecordViolation("user_1", "api_call", false)
	}
	if scorer.Score("user_1") != 100.0 {
		t.Fatalf("Expected score of exactly 100.0, got %v", scorer.Score("user_1"))
	}
	if scorer.Blocked("user_1") {
		t.Error("Score of exactly 100.0 must not block")
	}
}

func TestAbuseScorer_Reset(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	for i := 0; i < 11; i++ {
		scorer.RecordViolation("user_1", "api_call", false)
	}
	if !scorer.Blocked("user_1") {
		t.Fatal("Setup should have blocked the actor")
	}

	scorer.Reset("user_1")

	if scorer.Score("user_1") != 0 {
		t.Error("Reset must zero the score")
	}
	if scorer.Blocked("user_1") {
		t.Error("Reset must unblock the actor")
	}
	if len(scorer.History("user_1")) != 0 {
		t.Error("Reset must clear the history")
	}

	// A fresh threshold crossing after reset fires the edge again.
	crossings := 0
	for i := 0; i < 11; i++ {
		if _, _, crossed := scorer.RecordViolation("user_1", "api_call", false); crossed {
			crossings++
		}
	}
	if crossings != 1 {
		t.Errorf("Crossing after reset should fire once, fired %d times", crossings)
	}
}

func TestAbuseScorer_HistoryOrderAndIsolation(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	scorer.RecordViolation("user_1", "a", false)
	clock.Advance(time.Minute)
	scorer.RecordViolation("user_1", "b", false)
	scorer.RecordViolation("user_2", "a", false)

	hist := scorer.History("user_1")
	if len(hist) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(hist))
	}
	if hist[0].Action != "a" || hist[1].Action != "b" {
		t.Error("History must be ordered oldest first")
	}
	if hist[0].Timestamp.After(hist[1].Timestamp) {
		t.Error("Timestamps must be non-decreasing")
	}
	if len(scorer.History("user_2")) != 1 {
		t.Error("Actors must not share history")
	}
	if scorer.History("unknown") != nil {
		t.Error("Unknown actor should have no history")
	}
}

func TestAbuseScorer_RetentionPruning(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	scorer.RecordViolation("user_1", "a", false)
	clock.Advance(25 * time.Hour)
	scorer.RecordViolation("user_1", "b", false)

	hist := scorer.History("user_1")
	if len(hist) != 1 || hist[0].Action != "b" {
		t.Errorf("Records past the retention horizon must be pruned, got %d records", len(hist))
	}
}

func TestAbuseScorer_HistoryCap(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(clock)

	for i := 0; i < maxViolationRecords+50; i++ {
		scorer.RecordViolation("user_1", "api_call", false)
		clock.Advance(time.Millisecond)
	}

	if got := len(scorer.History("user_1")); got != maxViolationRecords {
		t.Errorf("History must be capped at %d records, got %d", maxViolationRecords, got)
	}
}
