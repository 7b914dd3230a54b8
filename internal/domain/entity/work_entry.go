package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used on the wire and in storage
const DateLayout = "2006-01-02"

// SourceKind tells which backend collection a work entry came from
type SourceKind string

const (
	SourceSingle SourceKind = "single"
	SourceRange  SourceKind = "range"
)

// Persistence tracks a work entry through the draft-vs-persisted lifecycle
type Persistence string

const (
	// PersistenceNew marks an entry created locally that has no server identity yet
	PersistenceNew Persistence = "new"
	// PersistenceDraft marks a persisted entry carrying unsaved local edits
	PersistenceDraft Persistence = "draft"
	// PersistencePersisted marks an entry confirmed by the backend
	PersistencePersisted Persistence = "persisted"
)

// EntryField names an editable work entry field
type EntryField string

const (
	FieldWorkType    EntryField = "work_type"
	FieldWorkedHours EntryField = "worked_hours"
	FieldDriver      EntryField = "driver"
	FieldDate        EntryField = "date"
)

// IsValid returns true for the fields UpdateField understands
func (f EntryField) IsValid() bool {
	switch f {
	case FieldWorkType, FieldWorkedHours, FieldDriver, FieldDate:
		return true
	}
	return false
}

// WorkEntry is one equipment/day/work-type attendance record ("sarky")
type WorkEntry struct {
	ID           int64           `json:"id,omitempty"`
	Ref          string          `json:"ref"`
	EquipmentID  int64           `json:"equipment_id"`
	Date         time.Time       `json:"date"`
	WorkTypeID   int64           `json:"work_type_id,omitempty" validate:"required,gt=0"`
	WorkedHours  decimal.Decimal `json:"worked_hours" validate:"positive_decimal"`
	DriverID     int64           `json:"driver_id,omitempty" validate:"required,gt=0"`
	SourceKind   SourceKind      `json:"source_kind"`
	Persistence  Persistence     `json:"persistence"`
	RangeGroupID int64           `json:"range_group_id,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
}

// IsRange reports whether the entry belongs to a backend-owned range group
func (e *WorkEntry) IsRange() bool {
	return e.SourceKind == SourceRange
}

// IsEditable reports whether this core may mutate the entry
func (e *WorkEntry) IsEditable() bool {
	return !e.IsRange()
}

// IsUnsaved reports whether the entry has local state the backend has not confirmed
func (e *WorkEntry) IsUnsaved() bool {
	return e.Persistence == PersistenceNew || e.Persistence == PersistenceDraft
}

// IsNew reports whether the entry has never been persisted
func (e *WorkEntry) IsNew() bool {
	return e.Persistence == PersistenceNew
}

// IsComplete reports whether all fields required for saving are set
func (e *WorkEntry) IsComplete() bool {
	return e.WorkTypeID > 0 && e.DriverID > 0 && e.WorkedHours.IsPositive()
}

// Key returns the (date, work type) index key of the entry
func (e *WorkEntry) Key() EntryKey {
	return EntryKey{Date: e.Date.Format(DateLayout), WorkTypeID: e.WorkTypeID}
}

// Clone returns a copy that shares no mutable state with e
func (e *WorkEntry) Clone() *WorkEntry {
	c := *e
	return &c
}

// EntryKey indexes work entries by calendar day and work type
type EntryKey struct {
	Date       string
	WorkTypeID int64
}

// String returns the string representation of the key
func (k EntryKey) String() string {
	return fmt.Sprintf("%s/%d", k.Date, k.WorkTypeID)
}

// RangeGroup is a backend-owned multi-day block of work entries
type RangeGroup struct {
	ID          int64        `json:"id"`
	EquipmentID int64        `json:"equipment_id"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	Entries     []*WorkEntry `json:"entries"`
}

// Dates returns the distinct calendar days covered by the group's entries
func (g *RangeGroup) Dates() []string {
	seen := make(map[string]bool, len(g.Entries))
	dates := make([]string, 0, len(g.Entries))
	for _, e := range g.Entries {
		d := e.Date.Format(DateLayout)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	return dates
}

// DateOf truncates t to its calendar day in UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DateLayout string into a UTC calendar day
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, NewValidationError("date", s, "expected YYYY-MM-DD")
	}
	return t, nil
}

// InMonth reports whether t falls in the given month and year
func InMonth(t time.Time, month time.Month, year int) bool {
	return t.Year() == year && t.Month() == month
}

// DaysIn returns the number of days in the month
func DaysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
