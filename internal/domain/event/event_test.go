package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range AllTypes {
		assert.True(t, typ.IsValid(), typ.String())
	}
	assert.False(t, Type("entry.exploded").IsValid())
	assert.False(t, Type("").IsValid())
}

func TestNewWorkLogEvent(t *testing.T) {
	evt := NewWorkLogEvent(TypeEntrySaved, 42, map[string]interface{}{"ref": "draft-1"})

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, TypeEntrySaved, evt.Type)
	assert.Equal(t, int64(42), evt.EquipmentID)
	assert.Equal(t, "draft-1", evt.GetPayloadString("ref"))
	assert.False(t, evt.Timestamp.IsZero())
}

func TestEvent_WithPayloadDoesNotMutateOriginal(t *testing.T) {
	evt := NewBatchEvent(TypeBatchClassified, 777, map[string]interface{}{"state": "NOT_FOUND"})

	updated := evt.WithPayload("attempt", 2)

	assert.Equal(t, int64(2), updated.GetPayloadInt("attempt"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("attempt"))
	assert.Equal(t, evt.ID, updated.ID)
	assert.Equal(t, "NOT_FOUND", updated.GetPayloadString("state"))
}
