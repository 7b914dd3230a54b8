package worklog

import (
	"sort"
	"time"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Matrix is the day × work-type projection of a month
type Matrix struct {
	Month        time.Month        `json:"month"`
	Year         int               `json:"year"`
	WorkTypes    []int64           `json:"work_types"`
	Rows         []MatrixRow       `json:"rows"`
	ColumnTotals []decimal.Decimal `json:"column_totals"`
	GrandTotal   decimal.Decimal   `json:"grand_total"`
}

// MatrixRow holds one day; Cells align with Matrix.WorkTypes
type MatrixRow struct {
	Date  string            `json:"date"`
	Day   int               `json:"day"`
	Cells []decimal.Decimal `json:"cells"`
	Total decimal.Decimal   `json:"total"`
}

// Cell returns the summed hours for a day and work type
func (m *Matrix) Cell(date string, workTypeID int64) decimal.Decimal {
	col := -1
	for i, wt := range m.WorkTypes {
		if wt == workTypeID {
			col = i
			break
		}
	}
	if col < 0 {
		return decimal.Zero
	}
	for _, row := range m.Rows {
		if row.Date == date {
			return row.Cells[col]
		}
	}
	return decimal.Zero
}

// ProjectMatrix sums worked hours per (day, work type). Columns are the
// work types present in the month, ascending. Entries without a work
// type are left out. The result depends only on its arguments.
func ProjectMatrix(entries []*entity.WorkEntry, month time.Month, year int) *Matrix {
	sums := make(map[entity.EntryKey]decimal.Decimal)
	seen := make(map[int64]bool)
	for _, e := range entries {
		if e == nil || e.WorkTypeID <= 0 || !entity.InMonth(e.Date, month, year) {
			continue
		}
		k := e.Key()
		sums[k] = sums[k].Add(e.WorkedHours)
		seen[e.WorkTypeID] = true
	}

	workTypes := make([]int64, 0, len(seen))
	for wt := range seen {
		workTypes = append(workTypes, wt)
	}
	sort.Slice(workTypes, func(i, j int) bool { return workTypes[i] < workTypes[j] })

	m := &Matrix{
		Month:        month,
		Year:         year,
		WorkTypes:    workTypes,
		ColumnTotals: make([]decimal.Decimal, len(workTypes)),
		GrandTotal:   decimal.Zero,
	}
	for i := range m.ColumnTotals {
		m.ColumnTotals[i] = decimal.Zero
	}

	days := entity.DaysIn(month, year)
	for day := 1; day <= days; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(entity.DateLayout)
		row := MatrixRow{
			Date:  date,
			Day:   day,
			Cells: make([]decimal.Decimal, len(workTypes)),
			Total: decimal.Zero,
		}
		for i, wt := range workTypes {
			v, ok := sums[entity.EntryKey{Date: date, WorkTypeID: wt}]
			if !ok {
				v = decimal.Zero
			}
			row.Cells[i] = v
			row.Total = row.Total.Add(v)
			m.ColumnTotals[i] = m.ColumnTotals[i].Add(v)
		}
		m.GrandTotal = m.GrandTotal.Add(row.Total)
		m.Rows = append(m.Rows, row)
	}
	return m
}

// CellWrite is the outcome of Store.WriteCell
type CellWrite struct {
	// Entry is the created or updated entry; nil when the cell was cleared
	Entry   *entity.WorkEntry `json:"entry,omitempty"`
	Created bool              `json:"created"`
	// Removed counts unsaved entries discarded locally
	Removed int `json:"removed"`
	// PendingDeletes are persisted entries that must be deleted on the backend
	PendingDeletes []*entity.WorkEntry `json:"pending_deletes,omitempty"`
}

// WriteCell sets the hours of a (day, work type) matrix cell. Only
// editable entries are touched; range hours in the same cell remain.
//
// With hours > 0 the first editable entry (persisted ones before local
// drafts) takes the value and the other editable entries of the cell are
// removed. A new draft is created only when the cell is empty; a cell
// holding nothing but range entries refuses the write with ErrRangeEntry.
// With hours <= 0 every editable entry of the cell is removed. Unsaved
// entries are discarded at once; persisted ones are returned in
// PendingDeletes for the caller to delete with permission.
func (s *Store) WriteCell(date time.Time, workTypeID int64, hours decimal.Decimal, driverID int64) (*CellWrite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope.IsZero() {
		return nil, ErrNotLoaded
	}
	date = entity.DateOf(date)
	if err := s.checkDateLocked(date); err != nil {
		return nil, err
	}
	if workTypeID <= 0 {
		return nil, entity.NewValidationError(string(entity.FieldWorkType), workTypeID, "must be a positive integer")
	}

	key := entity.EntryKey{Date: date.Format(entity.DateLayout), WorkTypeID: workTypeID}
	var (
		editable []*entity.WorkEntry
		ranged   int
	)
	for _, e := range s.indexLocked()[key] {
		if e.IsEditable() {
			editable = append(editable, e)
		} else {
			ranged++
		}
	}
	// Entries with a server identity take the value before local drafts
	sort.SliceStable(editable, func(i, j int) bool {
		return !editable[i].IsNew() && editable[j].IsNew()
	})

	result := &CellWrite{}
	if hours.IsPositive() {
		if len(editable) == 0 && ranged > 0 {
			return nil, ErrRangeEntry
		}
		if len(editable) == 0 {
			e := s.newDraftLocked(date, workTypeID, hours, driverID)
			s.singles = append(s.singles, e)
			result.Entry = e.Clone()
			result.Created = true
			return result, nil
		}

		first := editable[0]
		i := s.singleIndexLocked(first.Ref)
		next := first.Clone()
		next.WorkedHours = hours
		if next.DriverID == 0 {
			next.DriverID = driverID
		}
		if !sameContent(first, next) && next.Persistence == entity.PersistencePersisted {
			next.Persistence = entity.PersistenceDraft
		}
		s.singles[i] = next
		result.Entry = next.Clone()
		editable = editable[1:]
	}

	for _, e := range editable {
		if e.IsNew() {
			s.dropLocked(s.singleIndexLocked(e.Ref))
			result.Removed++
			continue
		}
		result.PendingDeletes = append(result.PendingDeletes, e.Clone())
	}
	return result, nil
}
