package worklog

import "github.com/garyjia/fleet-worklog/internal/domain/entity"

// Sentinel errors of the work-log core. They match the entity taxonomy
// through errors.Is.
var (
	// ErrNotLoaded is returned by operations that need a refreshed month
	ErrNotLoaded = entity.NewConflictError("work log", "no equipment month has been loaded")

	// ErrRangeEntry is returned when a caller tries to change a range-owned entry
	ErrRangeEntry = entity.NewConflictError("work entry", "range entries are read-only")
)
