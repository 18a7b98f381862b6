package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Broadcaster pushes recorded events to live subscribers. Implemented by the
// websocket hub; a no-op implementation is fine for workers and tests.
type Broadcaster interface {
	Broadcast(event Event)
}

// NopBroadcaster discards events.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(Event) {}

// Recorder mirrors domain events into the audit log, the structured log and
// the live event stream. Recording is best-effort and happens after the
// emitting operation has committed; a failed mirror never rolls back ledger
// state.
type Recorder struct {
	repo        Repository
	logger      *zap.Logger
	broadcaster Broadcaster
}

func NewRecorder(repo Repository, logger *zap.Logger, broadcaster Broadcaster) *Recorder {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	return &Recorder{repo: repo, logger: logger, broadcaster: broadcaster}
}

// Record persists and fans out one event. Payload must be JSON-serializable.
func (r *Recorder) Record(ctx context.Context, eventType EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to encode audit payload",
			zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}

	event := &Event{
		EventType:  eventType,
		Payload:    data,
		OccurredAt: time.Now().UTC(),
	}
	if err := r.repo.InsertEvent(ctx, event); err != nil {
		r.logger.Error("failed to persist audit event",
			zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}

	r.logger.Info("event emitted",
		zap.String("event_type", string(eventType)),
		zap.Int64("event_id", event.ID))
	r.broadcaster.Broadcast(*event)
}
