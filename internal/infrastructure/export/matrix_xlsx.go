package export

import (
	"context"
	"fmt"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	titleRow  = 1
	headerRow = 3
	firstRow  = 4
)

// MatrixExporter writes month matrices as .xlsx workbooks
type MatrixExporter struct {
	storage port.FileStorage
	logger  *zap.Logger
}

// NewMatrixExporter creates a new exporter storing files in storage
func NewMatrixExporter(storage port.FileStorage, logger *zap.Logger) *MatrixExporter {
	return &MatrixExporter{
		storage: storage,
		logger:  logger,
	}
}

// FileName returns the storage path of a scope's export
func FileName(scope worklog.Scope) string {
	return fmt.Sprintf("equipment-%d/%04d-%02d.xlsx", scope.EquipmentID, scope.Year, int(scope.Month))
}

// SheetName returns the worksheet name used for a scope
func SheetName(scope worklog.Scope) string {
	return fmt.Sprintf("%04d-%02d", scope.Year, int(scope.Month))
}

// Export renders the matrix, stores it and returns the path and content
func (e *MatrixExporter) Export(ctx context.Context, scope worklog.Scope, m *worklog.Matrix) (string, []byte, error) {
	content, err := e.Render(scope, m)
	if err != nil {
		return "", nil, err
	}

	path := FileName(scope)
	if err := e.storage.Save(ctx, path, content); err != nil {
		return "", nil, err
	}

	e.logger.Info("Matrix workbook stored",
		zap.String("scope", scope.String()),
		zap.String("path", e.storage.GetFullPath(path)),
		zap.Int("size", len(content)))
	return path, content, nil
}

// Render builds the workbook: a title row, a header of work types, one
// row per day with its total, and a closing totals row
func (e *MatrixExporter) Render(scope worklog.Scope, m *worklog.Matrix) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(scope)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	e.setCell(f, sheet, 1, titleRow, fmt.Sprintf("Equipment %d work log, %s %d", scope.EquipmentID, m.Month, m.Year))

	lastCol := len(m.WorkTypes) + 2
	e.setCell(f, sheet, 1, headerRow, "Date")
	for i, wt := range m.WorkTypes {
		e.setCell(f, sheet, i+2, headerRow, fmt.Sprintf("Work type %d", wt))
	}
	e.setCell(f, sheet, lastCol, headerRow, "Total")

	row := firstRow
	for _, r := range m.Rows {
		e.setCell(f, sheet, 1, row, r.Date)
		for i, c := range r.Cells {
			e.setHours(f, sheet, i+2, row, c)
		}
		e.setHours(f, sheet, lastCol, row, r.Total)
		row++
	}

	e.setCell(f, sheet, 1, row, "Total")
	for i, c := range m.ColumnTotals {
		e.setHours(f, sheet, i+2, row, c)
	}
	e.setHours(f, sheet, lastCol, row, m.GrandTotal)

	for _, r := range []int{titleRow, headerRow, row} {
		from, _ := excelize.CoordinatesToCellName(1, r)
		to, _ := excelize.CoordinatesToCellName(lastCol, r)
		if err := f.SetCellStyle(sheet, from, to, bold); err != nil {
			return nil, fmt.Errorf("failed to style row %d: %w", r, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 12); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *MatrixExporter) setCell(f *excelize.File, sheet string, col, row int, value string) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err == nil {
		err = f.SetCellValue(sheet, cell, value)
	}
	if err != nil {
		e.logger.Warn("Failed to set cell value", zap.String("sheet", sheet), zap.Int("col", col), zap.Int("row", row), zap.Error(err))
	}
}

// setHours writes hours as a number; zero cells stay blank
func (e *MatrixExporter) setHours(f *excelize.File, sheet string, col, row int, hours decimal.Decimal) {
	if hours.IsZero() {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err == nil {
		err = f.SetCellFloat(sheet, cell, hours.InexactFloat64(), -1, 64)
	}
	if err != nil {
		e.logger.Warn("Failed to set hours", zap.String("sheet", sheet), zap.Int("col", col), zap.Int("row", row), zap.Error(err))
	}
}
