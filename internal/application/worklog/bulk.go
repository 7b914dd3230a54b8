package worklog

import (
	"time"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BulkDefaults are copied into every generated draft
type BulkDefaults struct {
	WorkTypeID  int64           `json:"work_type_id"`
	WorkedHours decimal.Decimal `json:"worked_hours"`
	DriverID    int64           `json:"driver_id"`
}

// BulkRequest asks for drafts over the inclusive range [Start, End]
type BulkRequest struct {
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	Defaults BulkDefaults `json:"defaults"`
}

// BulkResult lists what Generate created and which days it left alone
type BulkResult struct {
	Created []*entity.WorkEntry `json:"created"`
	Skipped []string            `json:"skipped,omitempty"`
}

// BulkGenerator fills free days of the loaded month with draft entries
type BulkGenerator struct {
	logger *zap.Logger
}

// NewBulkGenerator creates a new bulk generator
func NewBulkGenerator(logger *zap.Logger) *BulkGenerator {
	return &BulkGenerator{logger: logger}
}

// Generate creates one new draft per day of the range that holds no entry
// from any source. Occupied days are skipped and never overwritten. It
// fails when the range is inverted or leaves the loaded month, when a
// default is missing, or when no day is free.
func (g *BulkGenerator) Generate(store *Store, req BulkRequest) (*BulkResult, error) {
	if err := validateBulkRequest(req); err != nil {
		return nil, err
	}
	start, end := entity.DateOf(req.Start), entity.DateOf(req.End)

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.scope.IsZero() {
		return nil, ErrNotLoaded
	}
	if err := store.checkDateLocked(start); err != nil {
		return nil, err
	}
	if err := store.checkDateLocked(end); err != nil {
		return nil, err
	}

	occupied := store.occupiedLocked()
	result := &BulkResult{}
	var created []*entity.WorkEntry
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(entity.DateLayout)
		if occupied[key] {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		created = append(created, store.newDraftLocked(d, req.Defaults.WorkTypeID, req.Defaults.WorkedHours, req.Defaults.DriverID))
	}

	if len(created) == 0 {
		return nil, entity.NewValidationError("range", start.Format(entity.DateLayout)+".."+end.Format(entity.DateLayout),
			"every date in the range already has an entry")
	}

	store.singles = append(store.singles, created...)
	for _, e := range created {
		result.Created = append(result.Created, e.Clone())
	}

	g.logger.Info("Draft entries generated",
		zap.String("scope", store.scope.String()),
		zap.String("start", start.Format(entity.DateLayout)),
		zap.String("end", end.Format(entity.DateLayout)),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func validateBulkRequest(req BulkRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return entity.NewValidationError("range", nil, "start and end dates are required")
	}
	if entity.DateOf(req.End).Before(entity.DateOf(req.Start)) {
		return entity.NewValidationError("range", nil, "end date is before start date")
	}
	if req.Defaults.WorkTypeID <= 0 {
		return entity.NewValidationError(string(entity.FieldWorkType), req.Defaults.WorkTypeID, "a default work type is required")
	}
	if !req.Defaults.WorkedHours.IsPositive() {
		return entity.NewValidationError(string(entity.FieldWorkedHours), req.Defaults.WorkedHours.String(), "default worked hours must be positive")
	}
	if req.Defaults.DriverID <= 0 {
		return entity.NewValidationError(string(entity.FieldDriver), req.Defaults.DriverID, "a default driver is required")
	}
	return nil
}
