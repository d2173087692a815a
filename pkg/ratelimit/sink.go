package ratelimit

import (
	"context"

	"go.uber.org/zap"
)

// ViolationSink receives structured violation and operational events from
// the engine. Implementations live outside the engine (alerting pipelines,
// dashboards, audit logs).
//
// The engine calls the sink synchronously but best-effort: a sink error
// never changes the decision returned to the caller. Slow sinks slow checks
// down, so implementations that do I/O should buffer internally.
type ViolationSink interface {
	Record(ctx context.Context, ev Event) error
}

// ZapSink is a ViolationSink that writes events through a zap logger.
// Suspicious-activity and degradation events log at warn, the rest at info.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink constructs a ZapSink.
func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log}
}

// Record logs the event.
func (s *ZapSink) Record(ctx context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("actor_id", ev.ActorID),
		zap.String("action", ev.Action),
		zap.Float64("score", ev.Score),
		zap.Int("violations", ev.ViolationCount),
		zap.Time("timestamp", ev.Timestamp),
	}
	switch ev.Type {
	case EventSuspiciousActivity, EventStoreDegraded:
		s.log.Warn(string(ev.Type), fields...)
	default:
		s.log.Info(string(ev.Type), fields...)
	}
	return nil
}
