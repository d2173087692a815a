package ratelimit

import (
	"sync"
	"time"
)

const (
	// blockThreshold is the score above which an actor is blocked from all
	// actions until an operator resets the score.
	blockThreshold = 100.0

	// recencyWindow bounds how far back violations count toward the adaptive
	// multiplier.
	recencyWindow = time.Hour

	// retentionHorizon and maxViolationRecords bound the per-actor history.
	retentionHorizon    = 24 * time.Hour
	maxViolationRecords = 500

	baseViolationScore = 10.0
)

type abuseEntry struct {
	score    float64
	history  []ViolationRecord
	notified bool // suspicious_activity already emitted for this episode
}

// AbuseScorer tracks a running trust-violation score per actor, independent
// of any single action's quota. The score only grows; there is no passive
// decay, only explicit operator reset.
type AbuseScorer struct {
	mu     sync.Mutex
	actors map[string]*abuseEntry
	now    func() time.Time
}

// NewAbuseScorer constructs an empty scorer.
func NewAbuseScorer() *AbuseScorer {
	return &AbuseScorer{
		actors: make(map[string]*abuseEntry),
		now:    time.Now,
	}
}

// RecordViolation appends a violation for the actor and bumps the score.
// When adaptive is true the increment scales with the number of other
// violations inside the recency window:
//
//	score += 10 * (1 + recent*0.5)
//
// The returned crossed flag is true only on the call that first pushes the
// score over the block threshold, so callers can emit an edge-triggered
// alert rather than one per subsequent violation.
func (s *AbuseScorer) RecordViolation(actorID, action string, adaptive bool) (score float64, violations int, crossed bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.actors[actorID]
	if !ok {
		e = &abuseEntry{}
		s.actors[actorID] = e
	}

	// Recent violations exclude the one being recorded.
	recent := 0
	cutoff := now.Add(-recencyWindow)
	for _, rec := range e.history {
		if rec.Timestamp.After(cutoff) {
			recent++
		}
	}

	e.history = append(e.history, ViolationRecord{
		ActorID:   actorID,
		Action:    action,
		Timestamp: now,
	})
	s.prune(e, now)

	delta := baseViolationScore
	if adaptive {
		delta = baseViolationScore * (1 + float64(recent)*0.5)
	}
	e.score += delta

	if e.score > blockThreshold && !e.notified {
		e.notified = true
		crossed = true
	}
	return e.score, len(e.history), crossed
}

// Score returns the actor's current abuse score. Unknown actors score zero.
func (s *AbuseScorer) Score(actorID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.actors[actorID]; ok {
		return e.score
	}
	return 0
}

// Blocked reports whether the actor's score exceeds the block threshold.
func (s *AbuseScorer) Blocked(actorID string) bool {
	return s.Score(actorID) > blockThreshold
}

// Reset zeroes the actor's score and clears its history. This is an
// operator action; nothing in the engine resets scores on its own.
func (s *AbuseScorer) Reset(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.actors, actorID)
}

// History returns a copy of the actor's violation records, oldest first.
func (s *AbuseScorer) History(actorID string) []ViolationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.actors[actorID]
	if !ok {
		return nil
	}
	out := make([]ViolationRecord, len(e.history))
	copy(out, e.history)
	return out
}

// prune drops records past the retention horizon and caps the list length.
// Caller holds mu.
func (s *AbuseScorer) prune(e *abuseEntry, now time.Time) {
	cutoff := now.Add(-retentionHorizon)
	i := 0
	for i < len(e.history) && !e.history[i].Timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		e.history = e.history[i:]
	}
	if over := len(e.history) - maxViolationRecords; over > 0 {
		e.history = e.history[over:]
	}
}
