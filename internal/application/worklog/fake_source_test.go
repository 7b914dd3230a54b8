package worklog

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// fakeSource implements port.WorkEntrySource with overridable functions
type fakeSource struct {
	mu sync.Mutex

	singles []*entity.WorkEntry
	ranges  []*entity.RangeGroup
	nextID  int64
	creates int
	updates int
	deletes []int64

	fetchSinglesErr error
	fetchRangesErr  error
	createFunc      func(call int, entry *entity.WorkEntry) (*entity.WorkEntry, error)
	updateFunc      func(id int64, entry *entity.WorkEntry) (*entity.WorkEntry, error)
	deleteFunc      func(id int64) error
}

func newFakeSource() *fakeSource {
	return &fakeSource{nextID: 100}
}

func (f *fakeSource) FetchSingleEntries(ctx context.Context, equipmentID int64) ([]*entity.WorkEntry, error) {
	if f.fetchSinglesErr != nil {
		return nil, f.fetchSinglesErr
	}
	return f.singles, nil
}

func (f *fakeSource) FetchRangeEntries(ctx context.Context, equipmentID int64) ([]*entity.RangeGroup, error) {
	if f.fetchRangesErr != nil {
		return nil, f.fetchRangesErr
	}
	return f.ranges, nil
}

func (f *fakeSource) CreateEntry(ctx context.Context, equipmentID int64, entry *entity.WorkEntry) (*entity.WorkEntry, error) {
	f.mu.Lock()
	f.creates++
	call := f.creates
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	if f.createFunc != nil {
		return f.createFunc(call, entry)
	}
	saved := entry.Clone()
	saved.ID = id
	saved.EquipmentID = equipmentID
	saved.Persistence = entity.PersistencePersisted
	return saved, nil
}

func (f *fakeSource) UpdateEntry(ctx context.Context, id int64, entry *entity.WorkEntry) (*entity.WorkEntry, error) {
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()

	if f.updateFunc != nil {
		return f.updateFunc(id, entry)
	}
	saved := entry.Clone()
	saved.Persistence = entity.PersistencePersisted
	return saved, nil
}

func (f *fakeSource) DeleteEntry(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, id)
	f.mu.Unlock()

	if f.deleteFunc != nil {
		return f.deleteFunc(id)
	}
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func hours(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func single(id int64, d time.Time, workType int64, h string) *entity.WorkEntry {
	return &entity.WorkEntry{
		ID:          id,
		EquipmentID: 7,
		Date:        d,
		WorkTypeID:  workType,
		WorkedHours: hours(h),
		DriverID:    3,
	}
}

func rangeGroup(id int64, entries ...*entity.WorkEntry) *entity.RangeGroup {
	g := &entity.RangeGroup{ID: id, EquipmentID: 7, Entries: entries}
	if len(entries) > 0 {
		g.StartDate = entries[0].Date
		g.EndDate = entries[len(entries)-1].Date
	}
	return g
}
