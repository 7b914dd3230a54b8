package port

import (
	"context"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

// WorkEntrySource is the backend owning work entries and range groups
type WorkEntrySource interface {
	// FetchSingleEntries returns every single-day entry of the equipment
	FetchSingleEntries(ctx context.Context, equipmentID int64) ([]*entity.WorkEntry, error)

	// FetchRangeEntries returns every range group of the equipment with its entries
	FetchRangeEntries(ctx context.Context, equipmentID int64) ([]*entity.RangeGroup, error)

	// CreateEntry persists a new entry and returns it with its server identity
	CreateEntry(ctx context.Context, equipmentID int64, entry *entity.WorkEntry) (*entity.WorkEntry, error)

	// UpdateEntry overwrites an existing entry
	UpdateEntry(ctx context.Context, id int64, entry *entity.WorkEntry) (*entity.WorkEntry, error)

	// DeleteEntry removes an existing entry
	DeleteEntry(ctx context.Context, id int64) error
}

// TransactionSource is the inventory backend owning batch transactions
type TransactionSource interface {
	// LookupByBatchNumber returns the transaction for the batch number, or nil, nil when absent
	LookupByBatchNumber(ctx context.Context, batchNumber int64) (*entity.BatchTransaction, error)

	// SubmitValidationDecision applies an accept/reject decision to a pending transaction
	SubmitValidationDecision(ctx context.Context, transactionID int64, decision *entity.ValidationDecision) (*entity.BatchTransaction, error)

	// CreateTransaction creates a transaction under a batch number that has none
	CreateTransaction(ctx context.Context, payload *entity.NewTransaction) (*entity.BatchTransaction, error)
}

// Backend bundles both sources
type Backend interface {
	WorkEntrySource
	TransactionSource
}
