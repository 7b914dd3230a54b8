package port

import (
	"context"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

// WorkEntryRepository defines persistence operations for single-day work entries
type WorkEntryRepository interface {
	Create(ctx context.Context, entry *entity.WorkEntry) error
	GetByID(ctx context.Context, id int64) (*entity.WorkEntry, error)
	ListSingles(ctx context.Context, equipmentID int64) ([]*entity.WorkEntry, error)
	Update(ctx context.Context, entry *entity.WorkEntry) error
	Delete(ctx context.Context, id int64) error
}

// RangeGroupRepository defines persistence operations for range groups
type RangeGroupRepository interface {
	Create(ctx context.Context, group *entity.RangeGroup) error
	ListByEquipment(ctx context.Context, equipmentID int64) ([]*entity.RangeGroup, error)
}

// TransactionRepository defines persistence operations for batch transactions and their items
type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.BatchTransaction) error
	GetByID(ctx context.Context, id int64) (*entity.BatchTransaction, error)
	GetByBatchNumber(ctx context.Context, batchNumber int64) (*entity.BatchTransaction, error)
	ApplyDecision(ctx context.Context, tx *entity.BatchTransaction) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
