package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/persistence/sqlite"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// TransactionRepository implements port.TransactionRepository
type TransactionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new batch transaction repository
func NewTransactionRepository(db *sql.DB, logger *zap.Logger) port.TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a transaction with its items. Callers wrap it in a transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx *entity.BatchTransaction) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	now := time.Now().UTC()
	if tx.Status == "" {
		tx.Status = entity.TransactionPending
	}

	result, err := exec.ExecContext(ctx, `
		INSERT INTO transactions (
			batch_number, status, comments, rejection_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		tx.BatchNumber,
		string(tx.Status),
		tx.Comments,
		tx.RejectionReason,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.NewConflictError("transaction",
				fmt.Sprintf("batch number %d is already in use", tx.BatchNumber))
		}
		r.logger.Error("Failed to create transaction", zap.Int64("batch_number", tx.BatchNumber), zap.Error(err))
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	tx.ID = id
	tx.CreatedAt = now
	tx.UpdatedAt = now

	for _, item := range tx.Items {
		res, err := exec.ExecContext(ctx, `
			INSERT INTO transaction_items (
				transaction_id, item_type_id, requested_quantity, measuring_unit,
				received_quantity, not_received
			) VALUES (?, ?, ?, ?, ?, ?)
		`,
			id,
			item.ItemTypeID,
			item.RequestedQuantity,
			item.MeasuringUnit,
			nullableInt(item.ReceivedQuantity),
			item.NotReceived,
		)
		if err != nil {
			r.logger.Error("Failed to create transaction item", zap.Int64("transaction_id", id), zap.Error(err))
			return fmt.Errorf("failed to create transaction item: %w", err)
		}

		itemID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = itemID
	}

	return nil
}

// GetByID retrieves a transaction with its items, or nil when it does not exist
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*entity.BatchTransaction, error) {
	return r.getOne(ctx, "id", id)
}

// GetByBatchNumber retrieves the transaction of a batch number, or nil when there is none
func (r *TransactionRepository) GetByBatchNumber(ctx context.Context, batchNumber int64) (*entity.BatchTransaction, error) {
	return r.getOne(ctx, "batch_number", batchNumber)
}

func (r *TransactionRepository) getOne(ctx context.Context, column string, value int64) (*entity.BatchTransaction, error) {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	query := `
		SELECT id, batch_number, status, comments, rejection_reason, created_at, updated_at
		FROM transactions
		WHERE ` + column + ` = ?
	`

	var (
		tx     entity.BatchTransaction
		status string
	)
	err := exec.QueryRowContext(ctx, query, value).Scan(
		&tx.ID,
		&tx.BatchNumber,
		&status,
		&tx.Comments,
		&tx.RejectionReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get transaction", zap.String("by", column), zap.Int64("value", value), zap.Error(err))
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	tx.Status = entity.TransactionStatus(status)

	items, err := r.listItems(ctx, exec, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Items = items

	return &tx, nil
}

func (r *TransactionRepository) listItems(ctx context.Context, exec sqlite.Executor, transactionID int64) ([]*entity.TransactionItem, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, item_type_id, requested_quantity, measuring_unit, received_quantity, not_received
		FROM transaction_items
		WHERE transaction_id = ?
		ORDER BY id ASC
	`, transactionID)
	if err != nil {
		r.logger.Error("Failed to list transaction items", zap.Int64("transaction_id", transactionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list transaction items: %w", err)
	}
	defer rows.Close()

	var items []*entity.TransactionItem
	for rows.Next() {
		var (
			item     entity.TransactionItem
			received sql.NullInt64
		)
		if err := rows.Scan(
			&item.ID,
			&item.ItemTypeID,
			&item.RequestedQuantity,
			&item.MeasuringUnit,
			&received,
			&item.NotReceived,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction item: %w", err)
		}
		if received.Valid {
			q := int(received.Int64)
			item.ReceivedQuantity = &q
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

// ApplyDecision stores the status, texts and per-item quantities of tx
func (r *TransactionRepository) ApplyDecision(ctx context.Context, tx *entity.BatchTransaction) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	tx.UpdatedAt = time.Now().UTC()
	result, err := exec.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, comments = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ?
	`,
		string(tx.Status),
		tx.Comments,
		tx.RejectionReason,
		tx.UpdatedAt,
		tx.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update transaction", zap.Int64("id", tx.ID), zap.Error(err))
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if err := requireAffected(result, "transaction", tx.ID); err != nil {
		return err
	}

	for _, item := range tx.Items {
		if _, err := exec.ExecContext(ctx, `
			UPDATE transaction_items
			SET received_quantity = ?, not_received = ?
			WHERE id = ? AND transaction_id = ?
		`,
			nullableInt(item.ReceivedQuantity),
			item.NotReceived,
			item.ID,
			tx.ID,
		); err != nil {
			r.logger.Error("Failed to update transaction item", zap.Int64("item_id", item.ID), zap.Error(err))
			return fmt.Errorf("failed to update transaction item: %w", err)
		}
	}

	return nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// Verify interface compliance
var _ port.TransactionRepository = (*TransactionRepository)(nil)
