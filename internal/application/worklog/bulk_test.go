package worklog

import (
	"testing"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func julyRequest(startDay, endDay int) BulkRequest {
	return BulkRequest{
		Start:    date(2024, 7, startDay),
		End:      date(2024, 7, endDay),
		Defaults: BulkDefaults{WorkTypeID: 2, WorkedHours: hours("8"), DriverID: 3},
	}
}

func TestGenerate_OneDraftPerFreeDate(t *testing.T) {
	store := loadedStore(t, newFakeSource())
	gen := NewBulkGenerator(zap.NewNop())

	res, err := gen.Generate(store, julyRequest(1, 5))
	require.NoError(t, err)
	require.Len(t, res.Created, 5)
	assert.Empty(t, res.Skipped)

	for i, e := range res.Created {
		assert.Equal(t, date(2024, 7, i+1), e.Date)
		assert.Equal(t, entity.PersistenceNew, e.Persistence)
		assert.Equal(t, int64(2), e.WorkTypeID)
		assert.True(t, e.IsComplete())
	}
	assert.Equal(t, 5, store.Summary().Draft)
}

func TestGenerate_SkipsOccupiedDates(t *testing.T) {
	src := newFakeSource()
	src.singles = []*entity.WorkEntry{single(10, date(2024, 7, 3), 9, "2")}
	store := loadedStore(t, src)
	before := store.Entry("single-10")

	res, err := NewBulkGenerator(zap.NewNop()).Generate(store, julyRequest(1, 5))
	require.NoError(t, err)
	require.Len(t, res.Created, 4)
	assert.Equal(t, []string{"2024-07-03"}, res.Skipped)
	for _, e := range res.Created {
		assert.NotEqual(t, date(2024, 7, 3), e.Date)
	}
	assert.Equal(t, before, store.Entry("single-10"))
}

func TestGenerate_RangeEntriesOccupyDates(t *testing.T) {
	src := newFakeSource()
	src.ranges = []*entity.RangeGroup{rangeGroup(5, single(1, date(2024, 7, 1), 1, "8"), single(2, date(2024, 7, 2), 1, "8"))}
	store := loadedStore(t, src)

	res, err := NewBulkGenerator(zap.NewNop()).Generate(store, julyRequest(1, 3))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, date(2024, 7, 3), res.Created[0].Date)
}

func TestGenerate_Failures(t *testing.T) {
	src := newFakeSource()
	src.singles = []*entity.WorkEntry{single(10, date(2024, 7, 3), 9, "2")}
	store := loadedStore(t, src)
	gen := NewBulkGenerator(zap.NewNop())

	inverted := julyRequest(5, 1)
	noDriver := julyRequest(1, 5)
	noDriver.Defaults.DriverID = 0
	noHours := julyRequest(1, 5)
	noHours.Defaults.WorkedHours = hours("0")
	noType := julyRequest(1, 5)
	noType.Defaults.WorkTypeID = 0
	outside := julyRequest(30, 31)
	outside.End = date(2024, 8, 2)

	tests := map[string]BulkRequest{
		"inverted range":   inverted,
		"missing driver":   noDriver,
		"missing hours":    noHours,
		"missing type":     noType,
		"leaves the month": outside,
		"all occupied":     julyRequest(3, 3),
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := gen.Generate(store, req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, entity.ErrValidation)
		})
	}
	assert.Len(t, store.Entries(), 1, "failed requests create nothing")
}
