package backend

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fleet-worklog/migrations"
	"github.com/garyjia/fleet-worklog/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: database.MemoryPath}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = database.NewMigrator(db, migrations.FS, logger).Migrate(context.Background())
	require.NoError(t, err)

	return NewLocal(LocalDeps{
		Entries:      repository.NewWorkEntryRepository(db.DB, logger),
		Ranges:       repository.NewRangeGroupRepository(db.DB, logger),
		Transactions: repository.NewTransactionRepository(db.DB, logger),
		TxManager:    sqlite.NewDB(db.DB, logger),
	}, logger)
}

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLocal_EntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestLocal(t)

	created, err := b.CreateEntry(ctx, 7, &entity.WorkEntry{
		Date:        utcDay(2024, 3, 5),
		WorkTypeID:  1,
		WorkedHours: decimal.NewFromInt(8),
		DriverID:    2,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(7), created.EquipmentID)

	created.WorkedHours = decimal.NewFromInt(6)
	updated, err := b.UpdateEntry(ctx, created.ID, created)
	require.NoError(t, err)
	assert.True(t, updated.WorkedHours.Equal(decimal.NewFromInt(6)))

	entries, err := b.FetchSingleEntries(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = b.UpdateEntry(ctx, 999, created)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	require.NoError(t, b.DeleteEntry(ctx, created.ID))
}

func TestLocal_CreateEntryValidates(t *testing.T) {
	b := newTestLocal(t)

	_, err := b.CreateEntry(context.Background(), 7, &entity.WorkEntry{
		Date:        utcDay(2024, 3, 5),
		WorkTypeID:  1,
		WorkedHours: decimal.Zero,
		DriverID:    2,
	})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestLocal_CreateRangeGroup(t *testing.T) {
	ctx := context.Background()
	b := newTestLocal(t)

	group := &entity.RangeGroup{
		EquipmentID: 7,
		StartDate:   utcDay(2024, 3, 1),
		EndDate:     utcDay(2024, 3, 2),
		Entries: []*entity.WorkEntry{
			{Date: utcDay(2024, 3, 1), WorkTypeID: 1, WorkedHours: decimal.NewFromInt(8), DriverID: 2},
			{Date: utcDay(2024, 3, 2), WorkTypeID: 1, WorkedHours: decimal.NewFromInt(8), DriverID: 2},
		},
	}
	require.NoError(t, b.CreateRangeGroup(ctx, group))

	groups, err := b.FetchRangeEntries(ctx, 7)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Entries, 2)

	outside := &entity.RangeGroup{
		EquipmentID: 7,
		StartDate:   utcDay(2024, 3, 1),
		EndDate:     utcDay(2024, 3, 1),
		Entries: []*entity.WorkEntry{
			{Date: utcDay(2024, 3, 4), WorkTypeID: 1, WorkedHours: decimal.NewFromInt(8), DriverID: 2},
		},
	}
	assert.ErrorIs(t, b.CreateRangeGroup(ctx, outside), entity.ErrValidation)
}

func TestLocal_TransactionDecisionFlow(t *testing.T) {
	ctx := context.Background()
	b := newTestLocal(t)

	tx, err := b.CreateTransaction(ctx, &entity.NewTransaction{
		BatchNumber: 777,
		Items: []entity.NewTransactionItem{
			{ItemTypeID: 4, RequestedQuantity: 10, MeasuringUnit: "pcs"},
			{ItemTypeID: 5, RequestedQuantity: 3, MeasuringUnit: "l"},
		},
	})
	require.NoError(t, err)
	require.Len(t, tx.Items, 2)

	_, err = b.CreateTransaction(ctx, &entity.NewTransaction{
		BatchNumber: 777,
		Items:       []entity.NewTransactionItem{{ItemTypeID: 4, RequestedQuantity: 1, MeasuringUnit: "pcs"}},
	})
	assert.ErrorIs(t, err, entity.ErrConflict)

	nine := 9
	decision := &entity.ValidationDecision{
		Action: entity.ActionAccept,
		Items: map[int64]entity.ItemDecision{
			tx.Items[0].ID: {ReceivedQuantity: &nine},
			tx.Items[1].ID: {NotReceived: true},
		},
	}
	accepted, err := b.SubmitValidationDecision(ctx, tx.ID, decision)
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionAccepted, accepted.Status)
	assert.Equal(t, 9, *accepted.Items[0].ReceivedQuantity)
	assert.Equal(t, 0, *accepted.Items[1].ReceivedQuantity)
	assert.True(t, accepted.Items[1].NotReceived)

	_, err = b.SubmitValidationDecision(ctx, tx.ID, decision)
	assert.ErrorIs(t, err, entity.ErrConflict)

	looked, err := b.LookupByBatchNumber(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionAccepted, looked.Status)
}

func TestLocal_SubmitRejectsMalformedDecision(t *testing.T) {
	b := newTestLocal(t)

	_, err := b.SubmitValidationDecision(context.Background(), 1, &entity.ValidationDecision{Action: entity.ActionReject})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestLocal_CreateTransactionValidates(t *testing.T) {
	b := newTestLocal(t)

	_, err := b.CreateTransaction(context.Background(), &entity.NewTransaction{BatchNumber: 12})
	assert.ErrorIs(t, err, entity.ErrValidation)
}
