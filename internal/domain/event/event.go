package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised by the work-log or batch verification core
type Event struct {
	ID          string                 `json:"id"`
	Type        Type                   `json:"type"`
	EquipmentID int64                  `json:"equipment_id,omitempty"`
	BatchNumber int64                  `json:"batch_number,omitempty"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   time.Time              `json:"timestamp"`
}

// NewWorkLogEvent creates an event scoped to one piece of equipment
func NewWorkLogEvent(eventType Type, equipmentID int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		EquipmentID: equipmentID,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}

// NewBatchEvent creates an event scoped to a batch number
func NewBatchEvent(eventType Type, batchNumber int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		BatchNumber: batchNumber,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	c := *e
	c.Payload = newPayload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
