package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WorkEntryRepository implements port.WorkEntryRepository
type WorkEntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkEntryRepository creates a new work entry repository
func NewWorkEntryRepository(db *sql.DB, logger *zap.Logger) port.WorkEntryRepository {
	return &WorkEntryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a single-day entry and assigns its ID
func (r *WorkEntryRepository) Create(ctx context.Context, entry *entity.WorkEntry) error {
	query := `
		INSERT INTO work_entries (
			equipment_id, work_date, work_type_id, worked_hours, driver_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.EquipmentID,
		entry.Date.Format(entity.DateLayout),
		entry.WorkTypeID,
		entry.WorkedHours.String(),
		entry.DriverID,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create work entry", zap.Int64("equipment_id", entry.EquipmentID), zap.Error(err))
		return fmt.Errorf("failed to create work entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	entry.SourceKind = entity.SourceSingle
	entry.Persistence = entity.PersistencePersisted
	return nil
}

// GetByID retrieves a work entry by ID, or nil when it does not exist
func (r *WorkEntryRepository) GetByID(ctx context.Context, id int64) (*entity.WorkEntry, error) {
	query := `
		SELECT id, equipment_id, work_date, work_type_id, worked_hours, driver_id
		FROM work_entries
		WHERE id = ?
	`

	entry, err := scanWorkEntry(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get work entry by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get work entry: %w", err)
	}

	return entry, nil
}

// ListSingles returns every single-day entry of the equipment ordered by date
func (r *WorkEntryRepository) ListSingles(ctx context.Context, equipmentID int64) ([]*entity.WorkEntry, error) {
	query := `
		SELECT id, equipment_id, work_date, work_type_id, worked_hours, driver_id
		FROM work_entries
		WHERE equipment_id = ?
		ORDER BY work_date ASC, id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, equipmentID)
	if err != nil {
		r.logger.Error("Failed to list work entries", zap.Int64("equipment_id", equipmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list work entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.WorkEntry
	for rows.Next() {
		entry, err := scanWorkEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Update overwrites the editable fields of an entry
func (r *WorkEntryRepository) Update(ctx context.Context, entry *entity.WorkEntry) error {
	query := `
		UPDATE work_entries
		SET work_date = ?, work_type_id = ?, worked_hours = ?, driver_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.Date.Format(entity.DateLayout),
		entry.WorkTypeID,
		entry.WorkedHours.String(),
		entry.DriverID,
		time.Now().UTC(),
		entry.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update work entry", zap.Int64("id", entry.ID), zap.Error(err))
		return fmt.Errorf("failed to update work entry: %w", err)
	}

	return requireAffected(result, "work entry", entry.ID)
}

// Delete removes a work entry
func (r *WorkEntryRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, "DELETE FROM work_entries WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete work entry", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete work entry: %w", err)
	}

	return requireAffected(result, "work entry", id)
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkEntry(row rowScanner) (*entity.WorkEntry, error) {
	var (
		entry entity.WorkEntry
		date  string
		hours string
	)

	if err := row.Scan(
		&entry.ID,
		&entry.EquipmentID,
		&date,
		&entry.WorkTypeID,
		&hours,
		&entry.DriverID,
	); err != nil {
		return nil, err
	}

	if err := decodeDayAndHours(&entry, date, hours); err != nil {
		return nil, err
	}
	entry.SourceKind = entity.SourceSingle
	entry.Persistence = entity.PersistencePersisted
	return &entry, nil
}

func decodeDayAndHours(entry *entity.WorkEntry, date, hours string) error {
	day, err := entity.ParseDate(date)
	if err != nil {
		return fmt.Errorf("stored date %q: %w", date, err)
	}
	worked, err := decimal.NewFromString(hours)
	if err != nil {
		return fmt.Errorf("stored worked hours %q: %w", hours, err)
	}
	entry.Date = day
	entry.WorkedHours = worked
	return nil
}

func requireAffected(result sql.Result, resource string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return entity.NewNotFoundError(resource, fmt.Sprintf("%d", id))
	}
	return nil
}

// Verify interface compliance
var _ port.WorkEntryRepository = (*WorkEntryRepository)(nil)
