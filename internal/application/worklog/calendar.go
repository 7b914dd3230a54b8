package worklog

import (
	"fmt"
	"time"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DayStatus classifies one calendar day
type DayStatus string

const (
	DayCompleted DayStatus = "completed"
	DayDraft     DayStatus = "draft"
	DayWeekend   DayStatus = "weekend"
	DayEmpty     DayStatus = "empty"
)

// CalendarOptions tunes the calendar projection
type CalendarOptions struct {
	WeekendDays  []time.Weekday
	PreviewLimit int
}

// DefaultCalendarOptions returns Saturday/Sunday weekends and a two-entry preview
func DefaultCalendarOptions() CalendarOptions {
	return CalendarOptions{
		WeekendDays:  []time.Weekday{time.Saturday, time.Sunday},
		PreviewLimit: 2,
	}
}

// EntryPreview is the short form of an entry shown inside a day cell
type EntryPreview struct {
	Ref         string             `json:"ref"`
	WorkTypeID  int64              `json:"work_type_id"`
	WorkedHours decimal.Decimal    `json:"worked_hours"`
	DriverID    int64              `json:"driver_id"`
	SourceKind  entity.SourceKind  `json:"source_kind"`
	Persistence entity.Persistence `json:"persistence"`
}

// DayCell is one day of the calendar projection
type DayCell struct {
	Date      string          `json:"date"`
	Day       int             `json:"day"`
	Weekday   time.Weekday    `json:"weekday"`
	Status    DayStatus       `json:"status"`
	Count     int             `json:"count"`
	Hours     decimal.Decimal `json:"hours"`
	Preview   []EntryPreview  `json:"preview,omitempty"`
	More      int             `json:"more,omitempty"`
	MoreLabel string          `json:"more_label,omitempty"`
}

// ProjectCalendar returns one cell per day of the month. A day with a
// persisted entry (range entries included) is completed; otherwise a day
// with an unsaved entry is draft; an entry-less day is weekend or empty.
// The result depends only on its arguments.
func ProjectCalendar(entries []*entity.WorkEntry, month time.Month, year int, opts CalendarOptions) []DayCell {
	if opts.PreviewLimit < 0 {
		opts.PreviewLimit = 0
	}
	weekend := make(map[time.Weekday]bool, len(opts.WeekendDays))
	for _, d := range opts.WeekendDays {
		weekend[d] = true
	}

	byDay := make(map[string][]*entity.WorkEntry)
	for _, e := range entries {
		if e == nil || !entity.InMonth(e.Date, month, year) {
			continue
		}
		d := e.Date.Format(entity.DateLayout)
		byDay[d] = append(byDay[d], e)
	}

	days := entity.DaysIn(month, year)
	cells := make([]DayCell, 0, days)
	for day := 1; day <= days; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		key := date.Format(entity.DateLayout)

		dayEntries := append([]*entity.WorkEntry(nil), byDay[key]...)
		sortEntries(dayEntries)

		cell := DayCell{
			Date:    key,
			Day:     day,
			Weekday: date.Weekday(),
			Count:   len(dayEntries),
			Hours:   decimal.Zero,
		}
		cell.Status = classifyDay(dayEntries, weekend[date.Weekday()])

		for i, e := range dayEntries {
			cell.Hours = cell.Hours.Add(e.WorkedHours)
			if i < opts.PreviewLimit {
				cell.Preview = append(cell.Preview, EntryPreview{
					Ref:         e.Ref,
					WorkTypeID:  e.WorkTypeID,
					WorkedHours: e.WorkedHours,
					DriverID:    e.DriverID,
					SourceKind:  e.SourceKind,
					Persistence: e.Persistence,
				})
			}
		}
		if extra := len(dayEntries) - opts.PreviewLimit; extra > 0 {
			cell.More = extra
			cell.MoreLabel = fmt.Sprintf("+%d more", extra)
		}

		cells = append(cells, cell)
	}
	return cells
}

func classifyDay(entries []*entity.WorkEntry, isWeekend bool) DayStatus {
	var persisted, unsaved bool
	for _, e := range entries {
		if e.IsUnsaved() {
			unsaved = true
		} else {
			persisted = true
		}
	}

	switch {
	case persisted:
		return DayCompleted
	case unsaved:
		return DayDraft
	case isWeekend:
		return DayWeekend
	default:
		return DayEmpty
	}
}
