package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/dispatcher"
	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/event"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(d int) time.Time {
	return time.Date(2024, time.July, d, 0, 0, 0, 0, time.UTC)
}

func newWorkLogService(t *testing.T, backend *memoryBackend, d dispatcher.Dispatcher) WorkLogService {
	t.Helper()
	return NewWorkLogService(backend, &fakeExporter{}, d, WorkLogOptions{SaveConcurrency: 2}, zap.NewNop(), nopServiceLogger{})
}

func julyBulk(start, end int) worklog.BulkRequest {
	return worklog.BulkRequest{
		Start: day(start),
		End:   day(end),
		Defaults: worklog.BulkDefaults{
			WorkTypeID:  1,
			WorkedHours: decimal.NewFromInt(8),
			DriverID:    3,
		},
	}
}

func TestWorkLogService_RequiresLoad(t *testing.T) {
	svc := newWorkLogService(t, newMemoryBackend(), nil)

	_, err := svc.Entries(7)
	assert.ErrorIs(t, err, worklog.ErrNotLoaded)
	_, err = svc.Calendar(7)
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestWorkLogService_GenerateSaveAndReload(t *testing.T) {
	backend := newMemoryBackend()
	d := dispatcher.NewDispatcher()
	audit := NewAuditSubscriber(nopServiceLogger{}, 0)
	audit.Register(d)
	svc := newWorkLogService(t, backend, d)
	ctx := context.Background()

	_, err := svc.Load(ctx, 7, time.July, 2024)
	require.NoError(t, err)

	gen, err := svc.Generate(7, julyBulk(1, 5))
	require.NoError(t, err)
	assert.Len(t, gen.Created, 5)

	list, err := svc.Entries(7)
	require.NoError(t, err)
	assert.Equal(t, 5, list.Summary.Draft)

	res, err := svc.SaveAll(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Succeeded)
	assert.Equal(t, 0, res.Failed)

	_, err = svc.Load(ctx, 7, time.July, 2024)
	require.NoError(t, err)
	list, err = svc.Entries(7)
	require.NoError(t, err)
	assert.Equal(t, 5, list.Summary.Completed)
	assert.True(t, list.Summary.TotalHours.Equal(decimal.NewFromInt(40)))

	cal, err := svc.Calendar(7)
	require.NoError(t, err)
	require.Len(t, cal, 31)
	assert.Equal(t, worklog.DayCompleted, cal[0].Status)

	require.NoError(t, d.Close())
	var types []event.Type
	for _, evt := range audit.Recent() {
		types = append(types, evt.Type)
	}
	assert.Contains(t, types, event.TypeDraftsGenerated)
	assert.Contains(t, types, event.TypeEntrySaved)
	assert.Contains(t, types, event.TypeWorkLogRefreshed)
}

func TestWorkLogService_SaveFailureIsIsolated(t *testing.T) {
	backend := newMemoryBackend()
	backend.createErr = func(e *entity.WorkEntry) error {
		if e.Date.Equal(day(2)) {
			return entity.NewNetworkError("create entry", 503, errors.New("unavailable"))
		}
		return nil
	}
	svc := newWorkLogService(t, backend, nil)
	ctx := context.Background()

	_, err := svc.Load(ctx, 7, time.July, 2024)
	require.NoError(t, err)
	_, err = svc.Generate(7, julyBulk(1, 3))
	require.NoError(t, err)

	res, err := svc.SaveAll(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	list, err := svc.Entries(7)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Summary.Completed)
	assert.Equal(t, 1, list.Summary.Draft)
}

func TestWorkLogService_WriteCellDeletesPersistedDuplicates(t *testing.T) {
	backend := newMemoryBackend()
	backend.entries[1] = &entity.WorkEntry{ID: 1, EquipmentID: 7, Date: day(4), WorkTypeID: 2, WorkedHours: decimal.NewFromInt(3), DriverID: 3}
	backend.entries[2] = &entity.WorkEntry{ID: 2, EquipmentID: 7, Date: day(4), WorkTypeID: 2, WorkedHours: decimal.NewFromInt(5), DriverID: 3}
	svc := newWorkLogService(t, backend, nil)
	ctx := context.Background()

	_, err := svc.Load(ctx, 7, time.July, 2024)
	require.NoError(t, err)

	res, err := svc.WriteCell(ctx, 7, day(4), 2, decimal.NewFromInt(6), 3, worklog.Permissions{CanEdit: false})
	require.NoError(t, err)
	require.Len(t, res.PendingDeletes, 1)
	require.Len(t, res.DeleteFailures, 1)
	assert.ErrorIs(t, res.DeleteFailures[0].Err, entity.ErrPermissionDenied)

	res, err = svc.WriteCell(ctx, 7, day(4), 2, decimal.NewFromInt(6), 3, worklog.Permissions{CanEdit: true})
	require.NoError(t, err)
	assert.Len(t, res.Deleted, 1)
	assert.Empty(t, res.DeleteFailures)

	m, err := svc.Matrix(7)
	require.NoError(t, err)
	assert.True(t, m.Cell("2024-07-04", 2).Equal(decimal.NewFromInt(6)))
	assert.Len(t, backend.entries, 1)
}

func TestWorkLogService_Export(t *testing.T) {
	backend := newMemoryBackend()
	exporter := &fakeExporter{}
	svc := NewWorkLogService(backend, exporter, nil, WorkLogOptions{}, zap.NewNop(), nopServiceLogger{})

	_, _, err := svc.Export(context.Background(), 7)
	assert.ErrorIs(t, err, worklog.ErrNotLoaded)

	_, err = svc.Load(context.Background(), 7, time.July, 2024)
	require.NoError(t, err)
	path, content, err := svc.Export(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "exports/matrix.xlsx", path)
	assert.NotEmpty(t, content)
	assert.Equal(t, 1, exporter.calls)
}
