package service

import (
	"context"
	"sync"

	"github.com/garyjia/fleet-worklog/internal/application/dispatcher"
	"github.com/garyjia/fleet-worklog/internal/domain/event"
)

const defaultAuditCapacity = 200

// AuditSubscriber logs every domain event and keeps the most recent ones
type AuditSubscriber struct {
	mu       sync.Mutex
	logger   Logger
	capacity int
	recent   []*event.Event
}

// NewAuditSubscriber creates an audit subscriber keeping up to capacity events
func NewAuditSubscriber(logger Logger, capacity int) *AuditSubscriber {
	if capacity <= 0 {
		capacity = defaultAuditCapacity
	}
	return &AuditSubscriber{logger: logger, capacity: capacity}
}

// Register subscribes to every event type
func (a *AuditSubscriber) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll("audit", a.handle)
}

// Recent returns the retained events, oldest first
func (a *AuditSubscriber) Recent() []*event.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*event.Event(nil), a.recent...)
}

func (a *AuditSubscriber) handle(ctx context.Context, evt *event.Event) error {
	kv := []interface{}{"event_id", evt.ID, "event_type", evt.Type.String()}
	if evt.EquipmentID != 0 {
		kv = append(kv, "equipment_id", evt.EquipmentID)
	}
	if evt.BatchNumber != 0 {
		kv = append(kv, "batch_number", evt.BatchNumber)
	}
	for k, v := range evt.Payload {
		kv = append(kv, k, v)
	}

	if evt.Type == event.TypeEntrySaveFailed {
		a.logger.Error("Audit event", kv...)
	} else {
		a.logger.Info("Audit event", kv...)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.recent = append(a.recent, evt)
	if over := len(a.recent) - a.capacity; over > 0 {
		a.recent = append([]*event.Event(nil), a.recent[over:]...)
	}
	return nil
}
