package worklog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Scope identifies the equipment month a store holds
type Scope struct {
	EquipmentID int64      `json:"equipment_id"`
	Month       time.Month `json:"month"`
	Year        int        `json:"year"`
}

// IsZero reports whether nothing has been loaded yet
func (s Scope) IsZero() bool {
	return s.EquipmentID == 0
}

// Contains reports whether the calendar day d falls in the scope's month
func (s Scope) Contains(d time.Time) bool {
	return entity.InMonth(d, s.Month, s.Year)
}

// String returns the string representation of the scope
func (s Scope) String() string {
	return fmt.Sprintf("equipment %d %04d-%02d", s.EquipmentID, s.Year, int(s.Month))
}

// Summary aggregates the entries of the loaded month
type Summary struct {
	Completed  int             `json:"completed"`
	Draft      int             `json:"draft"`
	Total      int             `json:"total"`
	TotalHours decimal.Decimal `json:"total_hours"`
}

// DraftInput describes a manually added entry. Zero fields are allowed;
// incomplete drafts are kept but never saved.
type DraftInput struct {
	Date        time.Time
	WorkTypeID  int64
	WorkedHours decimal.Decimal
	DriverID    int64
}

// Store holds the merged, month-scoped work entries of one equipment.
//
// Single entries (including local drafts) and range groups live in two
// separate collections and are only joined when read. Records are never
// mutated in place: an edit swaps in a modified copy, so values handed
// out by Entries or Entry are never changed behind the caller's back.
type Store struct {
	mu     sync.Mutex
	source port.WorkEntrySource
	logger *zap.Logger

	scope   Scope
	singles []*entity.WorkEntry
	ranges  []*entity.RangeGroup
	issues  []IntegrityIssue
}

// NewStore creates an empty store reading from source
func NewStore(source port.WorkEntrySource, logger *zap.Logger) *Store {
	return &Store{
		source: source,
		logger: logger,
	}
}

// Scope returns the equipment month currently loaded
func (s *Store) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Issues returns the data-integrity conditions found by the last refresh
func (s *Store) Issues() []IntegrityIssue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]IntegrityIssue(nil), s.issues...)
}

// Entries returns copies of all entries, ordered by date then identifier
func (s *Store) Entries() []*entity.WorkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.mergedLocked()
	out := make([]*entity.WorkEntry, len(merged))
	for i, e := range merged {
		out[i] = e.Clone()
	}
	return out
}

// Entry returns a copy of the entry with the given ref, or nil
func (s *Store) Entry(ref string) *entity.WorkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.findLocked(ref); e != nil {
		return e.Clone()
	}
	return nil
}

// Summary counts completed and unsaved entries and totals their hours.
// Range entries count as completed.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{TotalHours: decimal.Zero}
	for _, e := range s.mergedLocked() {
		sum.Total++
		if e.IsUnsaved() {
			sum.Draft++
		} else {
			sum.Completed++
		}
		sum.TotalHours = sum.TotalHours.Add(e.WorkedHours)
	}
	return sum
}

// UpdateField changes one field of an editable entry. It returns false
// without error for range entries and for values equal to the current one.
// Editing a persisted entry turns it into a draft.
func (s *Store) UpdateField(ref string, field entity.EntryField, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.singleIndexLocked(ref)
	if i < 0 {
		if s.rangeEntryLocked(ref) != nil {
			return false, nil
		}
		return false, entity.NewNotFoundError("work entry", ref)
	}

	current := s.singles[i]
	if !current.IsEditable() {
		return false, nil
	}

	next := current.Clone()
	if err := applyField(next, field, value, s.scope); err != nil {
		return false, err
	}
	if sameContent(current, next) {
		return false, nil
	}

	if next.Persistence == entity.PersistencePersisted {
		next.Persistence = entity.PersistenceDraft
	}
	s.singles[i] = next
	return true, nil
}

// AddDraft appends a new local entry to the loaded month
func (s *Store) AddDraft(in DraftInput) (*entity.WorkEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope.IsZero() {
		return nil, ErrNotLoaded
	}
	if err := s.checkDateLocked(in.Date); err != nil {
		return nil, err
	}
	if in.WorkedHours.IsNegative() {
		return nil, entity.NewValidationError(string(entity.FieldWorkedHours), in.WorkedHours.String(), "must not be negative")
	}
	if in.WorkTypeID < 0 || in.DriverID < 0 {
		return nil, entity.NewValidationError("", nil, "identifiers must not be negative")
	}

	e := s.newDraftLocked(entity.DateOf(in.Date), in.WorkTypeID, in.WorkedHours, in.DriverID)
	s.singles = append(s.singles, e)
	return e.Clone(), nil
}

// Remove discards a local entry that was never persisted.
// Persisted entries go through Persister.Delete.
func (s *Store) Remove(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.singleIndexLocked(ref)
	if i < 0 {
		if s.rangeEntryLocked(ref) != nil {
			return ErrRangeEntry
		}
		return entity.NewNotFoundError("work entry", ref)
	}
	if !s.singles[i].IsNew() {
		return entity.NewConflictError("work entry", "persisted entries must be deleted through the backend")
	}

	s.dropLocked(i)
	return nil
}

// Refresh reloads the month from both sources. The sources are fetched
// concurrently; a failing source contributes nothing and is reported as a
// warning on the returned report rather than as an error. Unsaved local
// drafts of the same equipment month survive the refresh.
func (s *Store) Refresh(ctx context.Context, equipmentID int64, month time.Month, year int) (*RefreshReport, error) {
	scope := Scope{EquipmentID: equipmentID, Month: month, Year: year}
	if err := validateScope(scope); err != nil {
		return nil, err
	}

	fetched := fetchSources(ctx, s.source, equipmentID)
	for _, w := range fetched.warnings {
		s.logger.Warn("Work entry source unavailable, continuing without it",
			zap.String("source", w.Source),
			zap.String("scope", scope.String()),
			zap.Error(w.Err))
	}

	singles := ingestSingles(fetched.singles, scope)
	ranges := ingestRanges(fetched.ranges, scope)
	issues := findOverlaps(ranges)

	s.mu.Lock()
	if s.scope == scope {
		for _, e := range s.singles {
			if e.IsNew() {
				singles = append(singles, e)
			}
		}
	}
	s.scope = scope
	s.singles = singles
	s.ranges = ranges
	s.issues = issues
	total := len(s.mergedLocked())
	s.mu.Unlock()

	for _, issue := range issues {
		s.logger.Warn("Overlapping range groups", zap.String("date", issue.Date), zap.Int64s("range_group_ids", issue.RangeGroupIDs))
	}

	report := &RefreshReport{
		Scope:    scope,
		Entries:  total,
		Warnings: fetched.warnings,
		Issues:   issues,
	}
	s.logger.Info("Work log refreshed",
		zap.String("scope", scope.String()),
		zap.Int("entries", total),
		zap.Int("warnings", len(report.Warnings)),
		zap.Int("issues", len(issues)))
	return report, nil
}

// mergedLocked joins both collections, ordered by date, then ID, then ref
func (s *Store) mergedLocked() []*entity.WorkEntry {
	merged := make([]*entity.WorkEntry, 0, len(s.singles))
	merged = append(merged, s.singles...)
	for _, g := range s.ranges {
		merged = append(merged, g.Entries...)
	}
	sortEntries(merged)
	return merged
}

// indexLocked groups all entries by (date, work type)
func (s *Store) indexLocked() map[entity.EntryKey][]*entity.WorkEntry {
	idx := make(map[entity.EntryKey][]*entity.WorkEntry)
	for _, e := range s.mergedLocked() {
		idx[e.Key()] = append(idx[e.Key()], e)
	}
	return idx
}

// occupiedLocked returns the set of days holding at least one entry from either source
func (s *Store) occupiedLocked() map[string]bool {
	days := make(map[string]bool)
	for _, e := range s.mergedLocked() {
		days[e.Date.Format(entity.DateLayout)] = true
	}
	return days
}

func (s *Store) findLocked(ref string) *entity.WorkEntry {
	if i := s.singleIndexLocked(ref); i >= 0 {
		return s.singles[i]
	}
	return s.rangeEntryLocked(ref)
}

func (s *Store) singleIndexLocked(ref string) int {
	for i, e := range s.singles {
		if e.Ref == ref {
			return i
		}
	}
	return -1
}

func (s *Store) rangeEntryLocked(ref string) *entity.WorkEntry {
	for _, g := range s.ranges {
		for _, e := range g.Entries {
			if e.Ref == ref {
				return e
			}
		}
	}
	return nil
}

func (s *Store) dropLocked(i int) {
	s.singles = append(s.singles[:i:i], s.singles[i+1:]...)
}

func (s *Store) newDraftLocked(date time.Time, workTypeID int64, hours decimal.Decimal, driverID int64) *entity.WorkEntry {
	return &entity.WorkEntry{
		Ref:         "draft-" + uuid.NewString(),
		EquipmentID: s.scope.EquipmentID,
		Date:        date,
		WorkTypeID:  workTypeID,
		WorkedHours: hours,
		DriverID:    driverID,
		SourceKind:  entity.SourceSingle,
		Persistence: entity.PersistenceNew,
	}
}

func (s *Store) checkDateLocked(d time.Time) error {
	if !s.scope.Contains(d) {
		return entity.NewValidationError(string(entity.FieldDate), d.Format(entity.DateLayout),
			fmt.Sprintf("must fall within %04d-%02d", s.scope.Year, int(s.scope.Month)))
	}
	return nil
}

// applyField parses value into the named field of e
func applyField(e *entity.WorkEntry, field entity.EntryField, value string, scope Scope) error {
	value = strings.TrimSpace(value)

	switch field {
	case entity.FieldWorkType:
		id, err := parseID(field, value)
		if err != nil {
			return err
		}
		e.WorkTypeID = id
	case entity.FieldDriver:
		id, err := parseID(field, value)
		if err != nil {
			return err
		}
		e.DriverID = id
	case entity.FieldWorkedHours:
		hours, err := decimal.NewFromString(value)
		if err != nil || !hours.IsPositive() {
			return entity.NewValidationError(string(field), value, "must be a positive number")
		}
		e.WorkedHours = hours
	case entity.FieldDate:
		d, err := entity.ParseDate(value)
		if err != nil {
			return err
		}
		if !scope.Contains(d) {
			return entity.NewValidationError(string(field), value,
				fmt.Sprintf("must fall within %04d-%02d", scope.Year, int(scope.Month)))
		}
		e.Date = d
	default:
		return entity.NewValidationError("field", string(field), "unknown field")
	}
	return nil
}

func parseID(field entity.EntryField, value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, entity.NewValidationError(string(field), value, "must be a positive integer")
	}
	return id, nil
}

func validateScope(scope Scope) error {
	if scope.EquipmentID <= 0 {
		return entity.NewValidationError("equipment_id", scope.EquipmentID, "must be a positive integer")
	}
	if scope.Month < time.January || scope.Month > time.December {
		return entity.NewValidationError("month", int(scope.Month), "must be between 1 and 12")
	}
	if scope.Year < 1 {
		return entity.NewValidationError("year", scope.Year, "must be positive")
	}
	return nil
}

// sameContent compares the fields a save sends to the backend
func sameContent(a, b *entity.WorkEntry) bool {
	return a.Date.Equal(b.Date) &&
		a.WorkTypeID == b.WorkTypeID &&
		a.DriverID == b.DriverID &&
		a.WorkedHours.Equal(b.WorkedHours)
}

func sortEntries(entries []*entity.WorkEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Ref < b.Ref
	})
}
