package service

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/dispatcher"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type maintenanceFixture struct {
	backend       *memoryBackend
	worklogs      WorkLogService
	verifications VerificationService
	maintenance   MaintenanceService
	session       string
}

func newMaintenanceFixture(t *testing.T, d dispatcher.Dispatcher) *maintenanceFixture {
	t.Helper()
	ctx := context.Background()

	backend := pendingBackend()
	f := &maintenanceFixture{
		backend:       backend,
		worklogs:      NewWorkLogService(backend, nil, d, WorkLogOptions{}, zap.NewNop(), nopServiceLogger{}),
		verifications: NewVerificationService(backend, d, 0, zap.NewNop(), nopServiceLogger{}),
	}
	f.maintenance = NewMaintenanceService(f.worklogs, f.verifications, d, nopServiceLogger{})

	_, err := f.worklogs.Load(ctx, 7, time.July, 2024)
	require.NoError(t, err)
	_, err = f.worklogs.Generate(7, julyBulk(1, 2))
	require.NoError(t, err)

	f.session = f.verifications.Open()
	_, err = f.verifications.Enter(f.session, "40")
	require.NoError(t, err)
	_, err = f.verifications.Lookup(ctx, f.session)
	require.NoError(t, err)
	return f
}

func TestMaintenance_InvalidDecisionBlocksSave(t *testing.T) {
	f := newMaintenanceFixture(t, nil)
	reject := entity.ActionReject
	_, err := f.verifications.UpdateForm(f.session, FormUpdate{Action: &reject})
	require.NoError(t, err)

	res, err := f.maintenance.Submit(context.Background(), MaintenanceRequest{EquipmentID: 7, SessionID: f.session})
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.False(t, res.Decision.Proceed)
	assert.Nil(t, res.Save)
	assert.Empty(t, f.backend.entries)
}

func TestMaintenance_SubmitsDecisionThenSaves(t *testing.T) {
	d := dispatcher.NewDispatcher()
	audit := NewAuditSubscriber(nopServiceLogger{}, 0)
	audit.Register(d)
	f := newMaintenanceFixture(t, d)

	res, err := f.maintenance.Submit(context.Background(), MaintenanceRequest{EquipmentID: 7, SessionID: f.session})
	require.NoError(t, err)
	assert.True(t, res.Decision.Proceed)
	assert.Equal(t, 2, res.Save.Succeeded)
	assert.Len(t, f.backend.entries, 2)
	assert.Equal(t, entity.TransactionAccepted, f.backend.txs[40].Status)

	require.NoError(t, d.Close())
	var submitted bool
	for _, evt := range audit.Recent() {
		if evt.Type == event.TypeMaintenanceSubmitted {
			submitted = true
			assert.Equal(t, true, evt.Payload["linked_batch"])
		}
	}
	assert.True(t, submitted)
}

func TestMaintenance_RequiresTarget(t *testing.T) {
	f := newMaintenanceFixture(t, nil)
	_, err := f.maintenance.Submit(context.Background(), MaintenanceRequest{})
	assert.ErrorIs(t, err, entity.ErrValidation)
}
