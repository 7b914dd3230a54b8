package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/pkg/utils"
	"go.uber.org/zap"
)

// Local implements port.Backend on top of the SQLite repositories
type Local struct {
	entries      port.WorkEntryRepository
	ranges       port.RangeGroupRepository
	transactions port.TransactionRepository
	txManager    port.TransactionManager
	logger       *zap.Logger
}

// LocalDeps groups the repositories a Local backend needs
type LocalDeps struct {
	Entries      port.WorkEntryRepository
	Ranges       port.RangeGroupRepository
	Transactions port.TransactionRepository
	TxManager    port.TransactionManager
}

// NewLocal creates a backend served from the local database
func NewLocal(deps LocalDeps, logger *zap.Logger) *Local {
	return &Local{
		entries:      deps.Entries,
		ranges:       deps.Ranges,
		transactions: deps.Transactions,
		txManager:    deps.TxManager,
		logger:       logger,
	}
}

// FetchSingleEntries implements port.WorkEntrySource
func (b *Local) FetchSingleEntries(ctx context.Context, equipmentID int64) ([]*entity.WorkEntry, error) {
	return b.entries.ListSingles(ctx, equipmentID)
}

// FetchRangeEntries implements port.WorkEntrySource
func (b *Local) FetchRangeEntries(ctx context.Context, equipmentID int64) ([]*entity.RangeGroup, error) {
	return b.ranges.ListByEquipment(ctx, equipmentID)
}

// CreateEntry implements port.WorkEntrySource
func (b *Local) CreateEntry(ctx context.Context, equipmentID int64, entry *entity.WorkEntry) (*entity.WorkEntry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	created := entry.Clone()
	created.ID = 0
	created.EquipmentID = equipmentID
	created.Date = entity.DateOf(entry.Date)
	created.LastError = ""
	if err := b.entries.Create(ctx, created); err != nil {
		return nil, err
	}

	b.logger.Info("Work entry created",
		zap.Int64("id", created.ID),
		zap.Int64("equipment_id", equipmentID),
		zap.String("date", created.Date.Format(entity.DateLayout)))
	return created, nil
}

// UpdateEntry implements port.WorkEntrySource
func (b *Local) UpdateEntry(ctx context.Context, id int64, entry *entity.WorkEntry) (*entity.WorkEntry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	var updated *entity.WorkEntry
	err := b.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := b.entries.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return entity.NewNotFoundError("work entry", strconv.FormatInt(id, 10))
		}

		existing.Date = entity.DateOf(entry.Date)
		existing.WorkTypeID = entry.WorkTypeID
		existing.WorkedHours = entry.WorkedHours
		existing.DriverID = entry.DriverID
		if err := b.entries.Update(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteEntry implements port.WorkEntrySource
func (b *Local) DeleteEntry(ctx context.Context, id int64) error {
	if err := b.entries.Delete(ctx, id); err != nil {
		return err
	}
	b.logger.Info("Work entry deleted", zap.Int64("id", id))
	return nil
}

// CreateRangeGroup stores a multi-day block. Range groups are owned by
// the backend; the work-log core only ever reads them.
func (b *Local) CreateRangeGroup(ctx context.Context, group *entity.RangeGroup) error {
	if group.EndDate.Before(group.StartDate) {
		return entity.NewValidationError("end_date", group.EndDate.Format(entity.DateLayout), "must not be before start_date")
	}
	if len(group.Entries) == 0 {
		return entity.NewValidationError("entries", nil, "a range group needs at least one entry")
	}
	for _, e := range group.Entries {
		if err := validateEntry(e); err != nil {
			return err
		}
		d := entity.DateOf(e.Date)
		if d.Before(group.StartDate) || d.After(group.EndDate) {
			return entity.NewValidationError("date", d.Format(entity.DateLayout), "entry falls outside the group's range")
		}
	}

	return b.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		return b.ranges.Create(ctx, group)
	})
}

// LookupByBatchNumber implements port.TransactionSource
func (b *Local) LookupByBatchNumber(ctx context.Context, batchNumber int64) (*entity.BatchTransaction, error) {
	return b.transactions.GetByBatchNumber(ctx, batchNumber)
}

// SubmitValidationDecision implements port.TransactionSource
func (b *Local) SubmitValidationDecision(ctx context.Context, transactionID int64, decision *entity.ValidationDecision) (*entity.BatchTransaction, error) {
	if problems := decision.Problems(); len(problems) > 0 {
		return nil, entity.NewValidationError("decision", nil, problems[0])
	}

	var result *entity.BatchTransaction
	err := b.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		tx, err := b.transactions.GetByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if tx == nil {
			return entity.NewNotFoundError("transaction", strconv.FormatInt(transactionID, 10))
		}
		if tx.Status.Normalize() != entity.TransactionPending {
			return entity.NewConflictError("transaction",
				fmt.Sprintf("batch %d is %s and cannot be validated", tx.BatchNumber, tx.Status))
		}

		if err := applyDecision(tx, decision); err != nil {
			return err
		}
		if err := b.transactions.ApplyDecision(ctx, tx); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("Validation decision applied",
		zap.Int64("transaction_id", result.ID),
		zap.Int64("batch_number", result.BatchNumber),
		zap.String("status", string(result.Status)))
	return result, nil
}

// CreateTransaction implements port.TransactionSource
func (b *Local) CreateTransaction(ctx context.Context, payload *entity.NewTransaction) (*entity.BatchTransaction, error) {
	if err := utils.ValidateStruct(payload); err != nil {
		return nil, toValidationError(err)
	}

	tx := &entity.BatchTransaction{
		BatchNumber: payload.BatchNumber,
		Status:      entity.TransactionPending,
		Comments:    payload.Comments,
	}
	for _, it := range payload.Items {
		tx.Items = append(tx.Items, &entity.TransactionItem{
			ItemTypeID:        it.ItemTypeID,
			RequestedQuantity: it.RequestedQuantity,
			MeasuringUnit:     it.MeasuringUnit,
		})
	}

	err := b.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := b.transactions.GetByBatchNumber(ctx, payload.BatchNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			return entity.NewConflictError("transaction",
				fmt.Sprintf("batch number %d is already in use", payload.BatchNumber))
		}
		return b.transactions.Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("Transaction created",
		zap.Int64("transaction_id", tx.ID),
		zap.Int64("batch_number", tx.BatchNumber),
		zap.Int("items", len(tx.Items)))
	return tx, nil
}

// applyDecision copies the decision onto tx. Accepting requires a
// decision for every item of the transaction.
func applyDecision(tx *entity.BatchTransaction, decision *entity.ValidationDecision) error {
	tx.Comments = decision.Comments

	if decision.Action == entity.ActionReject {
		tx.Status = entity.TransactionRejected
		tx.RejectionReason = decision.RejectionReason
		return nil
	}

	for _, item := range tx.Items {
		d, ok := decision.Items[item.ID]
		if !ok {
			return entity.NewValidationError("items", item.ID, fmt.Sprintf("no decision for item %d", item.ID))
		}
		if d.NotReceived {
			zero := 0
			item.NotReceived = true
			item.ReceivedQuantity = &zero
			continue
		}
		q := *d.ReceivedQuantity
		item.NotReceived = false
		item.ReceivedQuantity = &q
	}
	tx.Status = entity.TransactionAccepted
	tx.RejectionReason = ""
	return nil
}

func validateEntry(entry *entity.WorkEntry) error {
	if err := utils.ValidateStruct(entry); err != nil {
		return toValidationError(err)
	}
	if entry.Date.IsZero() {
		return entity.NewValidationError("date", nil, "is required")
	}
	return nil
}

func toValidationError(err error) error {
	var fe *utils.FieldError
	if errors.As(err, &fe) {
		return entity.NewValidationError(fe.Field, nil, fe.Message)
	}
	return entity.NewValidationError("", nil, err.Error())
}

// Verify interface compliance
var _ port.Backend = (*Local)(nil)
