package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/dispatcher"
	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/event"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MatrixExporter renders a month matrix to a spreadsheet, stores it and
// returns the stored path with the file content
type MatrixExporter interface {
	Export(ctx context.Context, scope worklog.Scope, m *worklog.Matrix) (string, []byte, error)
}

// WorkLogOptions tunes projections and saving
type WorkLogOptions struct {
	Calendar        worklog.CalendarOptions
	SaveConcurrency int
}

// EntryList is the merged month with its summary
type EntryList struct {
	Scope   worklog.Scope            `json:"scope"`
	Entries []*entity.WorkEntry      `json:"entries"`
	Summary worklog.Summary          `json:"summary"`
	Issues  []worklog.IntegrityIssue `json:"issues,omitempty"`
}

// CellWriteResult is a matrix write plus the outcome of deleting
// persisted duplicates
type CellWriteResult struct {
	*worklog.CellWrite
	Deleted        []string              `json:"deleted,omitempty"`
	DeleteFailures []worklog.SaveFailure `json:"-"`
}

// WorkLogService manages one work-log store per equipment
type WorkLogService interface {
	Load(ctx context.Context, equipmentID int64, month time.Month, year int) (*worklog.RefreshReport, error)
	Entries(equipmentID int64) (*EntryList, error)
	Calendar(equipmentID int64) ([]worklog.DayCell, error)
	Matrix(equipmentID int64) (*worklog.Matrix, error)
	UpdateField(equipmentID int64, ref string, field entity.EntryField, value string) (bool, error)
	AddDraft(equipmentID int64, in worklog.DraftInput) (*entity.WorkEntry, error)
	WriteCell(ctx context.Context, equipmentID int64, date time.Time, workTypeID int64, hours decimal.Decimal, driverID int64, perms worklog.Permissions) (*CellWriteResult, error)
	Generate(equipmentID int64, req worklog.BulkRequest) (*worklog.BulkResult, error)
	Save(ctx context.Context, equipmentID int64, ref string) (*entity.WorkEntry, error)
	SaveAll(ctx context.Context, equipmentID int64) (*worklog.SaveResult, error)
	Delete(ctx context.Context, equipmentID int64, ref string, perms worklog.Permissions) error
	Export(ctx context.Context, equipmentID int64) (string, []byte, error)
}

type workLogServiceImpl struct {
	mu     sync.Mutex
	stores map[int64]*worklog.Store

	source     port.WorkEntrySource
	persister  *worklog.Persister
	generator  *worklog.BulkGenerator
	exporter   MatrixExporter
	dispatcher dispatcher.Dispatcher
	opts       WorkLogOptions
	zap        *zap.Logger
	logger     Logger
}

// NewWorkLogService creates a new WorkLogService
func NewWorkLogService(
	source port.WorkEntrySource,
	exporter MatrixExporter,
	d dispatcher.Dispatcher,
	opts WorkLogOptions,
	zapLogger *zap.Logger,
	logger Logger,
) WorkLogService {
	if len(opts.Calendar.WeekendDays) == 0 && opts.Calendar.PreviewLimit == 0 {
		opts.Calendar = worklog.DefaultCalendarOptions()
	}
	return &workLogServiceImpl{
		stores:     make(map[int64]*worklog.Store),
		source:     source,
		persister:  worklog.NewPersister(source, opts.SaveConcurrency, zapLogger),
		generator:  worklog.NewBulkGenerator(zapLogger),
		exporter:   exporter,
		dispatcher: d,
		opts:       opts,
		zap:        zapLogger,
		logger:     logger,
	}
}

// Load refreshes the equipment's store for a month, creating it on first use
func (s *workLogServiceImpl) Load(ctx context.Context, equipmentID int64, month time.Month, year int) (*worklog.RefreshReport, error) {
	s.mu.Lock()
	store, ok := s.stores[equipmentID]
	if !ok {
		store = worklog.NewStore(s.source, s.zap)
		s.stores[equipmentID] = store
	}
	s.mu.Unlock()

	report, err := store.Refresh(ctx, equipmentID, month, year)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Work log loaded",
		"equipment_id", equipmentID,
		"scope", report.Scope.String(),
		"entries", report.Entries,
		"warnings", len(report.Warnings),
		"issues", len(report.Issues),
	)
	s.publish(ctx, event.NewWorkLogEvent(event.TypeWorkLogRefreshed, equipmentID, map[string]interface{}{
		"entries":  report.Entries,
		"degraded": report.Degraded(),
		"issues":   len(report.Issues),
	}))
	return report, nil
}

// Entries returns the merged month with its summary
func (s *workLogServiceImpl) Entries(equipmentID int64) (*EntryList, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return nil, err
	}
	return &EntryList{
		Scope:   store.Scope(),
		Entries: store.Entries(),
		Summary: store.Summary(),
		Issues:  store.Issues(),
	}, nil
}

// Calendar projects the loaded month onto days
func (s *workLogServiceImpl) Calendar(equipmentID int64) ([]worklog.DayCell, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return nil, err
	}
	scope := store.Scope()
	return worklog.ProjectCalendar(store.Entries(), scope.Month, scope.Year, s.opts.Calendar), nil
}

// Matrix projects the loaded month onto a day × work-type grid
func (s *workLogServiceImpl) Matrix(equipmentID int64) (*worklog.Matrix, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return nil, err
	}
	scope := store.Scope()
	return worklog.ProjectMatrix(store.Entries(), scope.Month, scope.Year), nil
}

// UpdateField edits one field of an editable entry
func (s *workLogServiceImpl) UpdateField(equipmentID int64, ref string, field entity.EntryField, value string) (bool, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return false, err
	}
	return store.UpdateField(ref, field, value)
}

// AddDraft adds a manual draft entry
func (s *workLogServiceImpl) AddDraft(equipmentID int64, in worklog.DraftInput) (*entity.WorkEntry, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return nil, err
	}
	return store.AddDraft(in)
}

// WriteCell applies a matrix edit and deletes the persisted duplicates it
// displaced. A failed delete does not undo the write.
func (s *workLogServiceImpl) WriteCell(ctx context.Context, equipmentID int64, date time.Time, workTypeID int64, hours decimal.Decimal, driverID int64, perms worklog.Permissions) (*CellWriteResult, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return nil, err
	}

	write, err := store.WriteCell(date, workTypeID, hours, driverID)
	if err != nil {
		return nil, err
	}

	result := &CellWriteResult{CellWrite: write}
	for _, pending := range write.PendingDeletes {
		ref := pending.Ref
		if err := s.persister.Delete(ctx, store, ref, perms); err != nil {
			result.DeleteFailures = append(result.DeleteFailures, worklog.SaveFailure{Ref: ref, Err: err})
			continue
		}
		result.Deleted = append(result.Deleted, ref)
		s.publish(ctx, event.NewWorkLogEvent(event.TypeEntryDeleted, equipmentID, map[string]interface{}{"ref": ref}))
	}
	return result, nil
}

// Generate fills free days of a range with drafts
func (s *workLogServiceImpl) Generate(equipmentID int64, req worklog.BulkRequest) (*worklog.BulkResult, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(store, req)
	if err != nil {
		return nil, err
	}
	s.publish(context.Background(), event.NewWorkLogEvent(event.TypeDraftsGenerated, equipmentID, map[string]interface{}{
		"created": len(result.Created),
		"skipped": len(result.Skipped),
	}))
	return result, nil
}

// Save persists one entry
func (s *workLogServiceImpl) Save(ctx context.Context, equipmentID int64, ref string) (*entity.WorkEntry, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return nil, err
	}

	saved, err := s.persister.Save(ctx, store, ref)
	if err != nil {
		s.publish(ctx, event.NewWorkLogEvent(event.TypeEntrySaveFailed, equipmentID, map[string]interface{}{
			"ref":   ref,
			"error": err.Error(),
		}))
		return nil, err
	}
	s.publish(ctx, event.NewWorkLogEvent(event.TypeEntrySaved, equipmentID, map[string]interface{}{
		"ref": saved.Ref,
		"id":  saved.ID,
	}))
	return saved, nil
}

// SaveAll persists every unsaved complete entry, isolating failures
func (s *workLogServiceImpl) SaveAll(ctx context.Context, equipmentID int64) (*worklog.SaveResult, error) {
	store, err := s.store(equipmentID)
	if err != nil {
		return nil, err
	}

	result := s.persister.SaveAll(ctx, store)
	s.logger.Info("Work log saved",
		"equipment_id", equipmentID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)

	if result.Succeeded > 0 {
		s.publish(ctx, event.NewWorkLogEvent(event.TypeEntrySaved, equipmentID, map[string]interface{}{
			"succeeded": result.Succeeded,
		}))
	}
	for _, f := range result.Failures {
		s.publish(ctx, event.NewWorkLogEvent(event.TypeEntrySaveFailed, equipmentID, map[string]interface{}{
			"ref":   f.Ref,
			"error": f.Err.Error(),
		}))
	}
	return result, nil
}

// Delete removes an entry; persisted entries need edit permission
func (s *workLogServiceImpl) Delete(ctx context.Context, equipmentID int64, ref string, perms worklog.Permissions) error {
	store, err := s.store(equipmentID)
	if err != nil {
		return err
	}
	if err := s.persister.Delete(ctx, store, ref, perms); err != nil {
		return err
	}
	s.publish(ctx, event.NewWorkLogEvent(event.TypeEntryDeleted, equipmentID, map[string]interface{}{"ref": ref}))
	return nil
}

// Export renders the matrix to a spreadsheet and stores a copy
func (s *workLogServiceImpl) Export(ctx context.Context, equipmentID int64) (string, []byte, error) {
	if s.exporter == nil {
		return "", nil, fmt.Errorf("matrix export is not configured")
	}
	store, err := s.store(equipmentID)
	if err != nil {
		return "", nil, err
	}

	scope := store.Scope()
	matrix := worklog.ProjectMatrix(store.Entries(), scope.Month, scope.Year)
	path, content, err := s.exporter.Export(ctx, scope, matrix)
	if err != nil {
		s.logger.Error("Failed to export matrix", "equipment_id", equipmentID, "error", err)
		return "", nil, fmt.Errorf("export matrix: %w", err)
	}
	s.logger.Info("Matrix exported", "equipment_id", equipmentID, "path", path)
	return path, content, nil
}

func (s *workLogServiceImpl) store(equipmentID int64) (*worklog.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, ok := s.stores[equipmentID]
	if !ok || store.Scope().IsZero() {
		return nil, worklog.ErrNotLoaded
	}
	return store, nil
}

func (s *workLogServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.dispatcher != nil {
		s.dispatcher.Publish(ctx, evt)
	}
}
