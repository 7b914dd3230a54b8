package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// RangeGroupRepository implements port.RangeGroupRepository
type RangeGroupRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRangeGroupRepository creates a new range group repository
func NewRangeGroupRepository(db *sql.DB, logger *zap.Logger) port.RangeGroupRepository {
	return &RangeGroupRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the group and its entries. Callers wrap it in a transaction.
func (r *RangeGroupRepository) Create(ctx context.Context, group *entity.RangeGroup) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	result, err := exec.ExecContext(ctx,
		`INSERT INTO range_groups (equipment_id, start_date, end_date) VALUES (?, ?, ?)`,
		group.EquipmentID,
		group.StartDate.Format(entity.DateLayout),
		group.EndDate.Format(entity.DateLayout),
	)
	if err != nil {
		r.logger.Error("Failed to create range group", zap.Int64("equipment_id", group.EquipmentID), zap.Error(err))
		return fmt.Errorf("failed to create range group: %w", err)
	}

	groupID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	group.ID = groupID

	for _, entry := range group.Entries {
		res, err := exec.ExecContext(ctx, `
			INSERT INTO range_entries (range_group_id, work_date, work_type_id, worked_hours, driver_id)
			VALUES (?, ?, ?, ?, ?)
		`,
			groupID,
			entry.Date.Format(entity.DateLayout),
			entry.WorkTypeID,
			entry.WorkedHours.String(),
			entry.DriverID,
		)
		if err != nil {
			r.logger.Error("Failed to create range entry", zap.Int64("range_group_id", groupID), zap.Error(err))
			return fmt.Errorf("failed to create range entry: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		entry.ID = id
		entry.EquipmentID = group.EquipmentID
		entry.RangeGroupID = groupID
		entry.SourceKind = entity.SourceRange
		entry.Persistence = entity.PersistencePersisted
	}

	return nil
}

// ListByEquipment returns the equipment's range groups with their ordered entries
func (r *RangeGroupRepository) ListByEquipment(ctx context.Context, equipmentID int64) ([]*entity.RangeGroup, error) {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, equipment_id, start_date, end_date
		FROM range_groups
		WHERE equipment_id = ?
		ORDER BY start_date ASC, id ASC
	`, equipmentID)
	if err != nil {
		r.logger.Error("Failed to list range groups", zap.Int64("equipment_id", equipmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list range groups: %w", err)
	}

	var groups []*entity.RangeGroup
	for rows.Next() {
		var (
			g          entity.RangeGroup
			start, end string
		)
		if err := rows.Scan(&g.ID, &g.EquipmentID, &start, &end); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan range group: %w", err)
		}
		if g.StartDate, err = entity.ParseDate(start); err != nil {
			rows.Close()
			return nil, fmt.Errorf("stored start date %q: %w", start, err)
		}
		if g.EndDate, err = entity.ParseDate(end); err != nil {
			rows.Close()
			return nil, fmt.Errorf("stored end date %q: %w", end, err)
		}
		groups = append(groups, &g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Entries are loaded after the group cursor is closed; the in-memory
	// database runs on a single connection.
	for _, g := range groups {
		entries, err := r.listEntries(ctx, exec, g)
		if err != nil {
			return nil, err
		}
		g.Entries = entries
	}

	return groups, nil
}

func (r *RangeGroupRepository) listEntries(ctx context.Context, exec sqlite.Executor, g *entity.RangeGroup) ([]*entity.WorkEntry, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, work_date, work_type_id, worked_hours, driver_id
		FROM range_entries
		WHERE range_group_id = ?
		ORDER BY work_date ASC, id ASC
	`, g.ID)
	if err != nil {
		r.logger.Error("Failed to list range entries", zap.Int64("range_group_id", g.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to list range entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.WorkEntry
	for rows.Next() {
		var (
			entry       entity.WorkEntry
			date, hours string
		)
		if err := rows.Scan(&entry.ID, &date, &entry.WorkTypeID, &hours, &entry.DriverID); err != nil {
			return nil, fmt.Errorf("failed to scan range entry: %w", err)
		}
		if err := decodeDayAndHours(&entry, date, hours); err != nil {
			return nil, err
		}
		entry.EquipmentID = g.EquipmentID
		entry.RangeGroupID = g.ID
		entry.SourceKind = entity.SourceRange
		entry.Persistence = entity.PersistencePersisted
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.RangeGroupRepository = (*RangeGroupRepository)(nil)
