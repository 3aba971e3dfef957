package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/events"
)

// publishEvent delivers after commit. Delivery failures are logged and never undo the
// committed change.
func publishEvent(ctx context.Context, d events.Dispatcher, logger *zap.Logger, typ events.EventType, actorID int64, at time.Time, payload any) {
	if d == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      typ,
		ActorID:   actorID,
		Timestamp: at,
		Payload:   payload,
	}
	if err := d.Publish(ctx, event); err != nil {
		logger.Warn("event delivery failed", zap.String("type", string(typ)), zap.Error(err))
	}
}

// storeTime is UTC at microsecond precision, the resolution Postgres keeps.
func storeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
