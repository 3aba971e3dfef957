package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/config"
	"github.com/spec-kit/ticket-lease-service/internal/events"
)

// StreamAppender appends one entry to a capped stream.
type StreamAppender interface {
	AppendEvent(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error)
}

// EventRelay forwards domain events to an external stream for downstream consumers.
type EventRelay struct {
	dispatcher events.Dispatcher
	stream     StreamAppender
	logger     *zap.Logger
	cfg        config.EventsConfig
}

// NewEventRelay creates the relay. A nil stream logs events only.
func NewEventRelay(dispatcher events.Dispatcher, stream StreamAppender, logger *zap.Logger, cfg config.EventsConfig) *EventRelay {
	return &EventRelay{
		dispatcher: dispatcher,
		stream:     stream,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (r *EventRelay) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	for _, typ := range events.AllEventTypes {
		r.dispatcher.Subscribe(typ, r.forward)
	}
}

func (r *EventRelay) forward(ctx context.Context, event events.Event) error {
	r.logger.Debug("domain event", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))
	if r.stream == nil {
		return nil
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	entryID, err := r.stream.AppendEvent(ctx, r.cfg.Stream, r.cfg.StreamMax, map[string]any{
		"id":        event.ID,
		"type":      string(event.Type),
		"actor_id":  strconv.FormatInt(event.ActorID, 10),
		"timestamp": event.Timestamp.UnixMilli(),
		"payload":   string(payload),
	})
	if err != nil {
		return fmt.Errorf("append %s to %s: %w", event.Type, r.cfg.Stream, err)
	}
	r.logger.Debug("event relayed", zap.String("stream", r.cfg.Stream), zap.String("entry_id", entryID))
	return nil
}
