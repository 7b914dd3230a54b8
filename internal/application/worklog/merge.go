package worklog

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"golang.org/x/sync/errgroup"
)

// Source names used in warnings
const (
	SourceNameSingle = "single"
	SourceNameRange  = "range"
)

// SourceWarning reports a source that failed during refresh and was treated as empty
type SourceWarning struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

// Message returns the warning text shown to the user
func (w SourceWarning) Message() string {
	return fmt.Sprintf("%s entries could not be loaded: %v", w.Source, w.Err)
}

// IntegrityIssue flags a day claimed by more than one range group. Both
// groups stay visible; no winner is picked.
type IntegrityIssue struct {
	Date          string  `json:"date"`
	RangeGroupIDs []int64 `json:"range_group_ids"`
}

// Message returns the issue text shown to the user
func (i IntegrityIssue) Message() string {
	return fmt.Sprintf("%s is claimed by %d range groups %v", i.Date, len(i.RangeGroupIDs), i.RangeGroupIDs)
}

// RefreshReport describes the outcome of Store.Refresh
type RefreshReport struct {
	Scope    Scope            `json:"scope"`
	Entries  int              `json:"entries"`
	Warnings []SourceWarning  `json:"warnings,omitempty"`
	Issues   []IntegrityIssue `json:"issues,omitempty"`
}

// Degraded reports whether at least one source failed
func (r *RefreshReport) Degraded() bool {
	return len(r.Warnings) > 0
}

type fetchResult struct {
	singles  []*entity.WorkEntry
	ranges   []*entity.RangeGroup
	warnings []SourceWarning
}

// fetchSources loads both collections concurrently. Neither goroutine
// returns an error: a failure only empties its own collection.
func fetchSources(ctx context.Context, source port.WorkEntrySource, equipmentID int64) fetchResult {
	var (
		res        fetchResult
		singlesErr error
		rangesErr  error
		g          errgroup.Group
	)

	g.Go(func() error {
		res.singles, singlesErr = source.FetchSingleEntries(ctx, equipmentID)
		return nil
	})
	g.Go(func() error {
		res.ranges, rangesErr = source.FetchRangeEntries(ctx, equipmentID)
		return nil
	})
	_ = g.Wait()

	if singlesErr != nil {
		res.singles = nil
		res.warnings = append(res.warnings, SourceWarning{Source: SourceNameSingle, Err: singlesErr})
	}
	if rangesErr != nil {
		res.ranges = nil
		res.warnings = append(res.warnings, SourceWarning{Source: SourceNameRange, Err: rangesErr})
	}
	return res
}

// ingestSingles copies the month's single entries and assigns their refs
func ingestSingles(raw []*entity.WorkEntry, scope Scope) []*entity.WorkEntry {
	out := make([]*entity.WorkEntry, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		e := r.Clone()
		e.Date = entity.DateOf(e.Date)
		if !scope.Contains(e.Date) {
			continue
		}
		e.Ref = "single-" + strconv.FormatInt(e.ID, 10)
		e.EquipmentID = scope.EquipmentID
		e.SourceKind = entity.SourceSingle
		e.Persistence = entity.PersistencePersisted
		e.RangeGroupID = 0
		e.LastError = ""
		out = append(out, e)
	}
	return out
}

// ingestRanges copies the groups that have entries in the month, keeping only those entries
func ingestRanges(raw []*entity.RangeGroup, scope Scope) []*entity.RangeGroup {
	out := make([]*entity.RangeGroup, 0, len(raw))
	for _, g := range raw {
		if g == nil {
			continue
		}
		group := &entity.RangeGroup{
			ID:          g.ID,
			EquipmentID: scope.EquipmentID,
			StartDate:   entity.DateOf(g.StartDate),
			EndDate:     entity.DateOf(g.EndDate),
		}
		for _, r := range g.Entries {
			if r == nil {
				continue
			}
			e := r.Clone()
			e.Date = entity.DateOf(e.Date)
			if !scope.Contains(e.Date) {
				continue
			}
			e.Ref = fmt.Sprintf("range-%d-%d", g.ID, e.ID)
			e.EquipmentID = scope.EquipmentID
			e.SourceKind = entity.SourceRange
			e.Persistence = entity.PersistencePersisted
			e.RangeGroupID = g.ID
			group.Entries = append(group.Entries, e)
		}
		if len(group.Entries) > 0 {
			out = append(out, group)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// findOverlaps reports every day covered by entries of more than one range group
func findOverlaps(groups []*entity.RangeGroup) []IntegrityIssue {
	claims := make(map[string][]int64)
	for _, g := range groups {
		for _, d := range g.Dates() {
			claims[d] = append(claims[d], g.ID)
		}
	}

	var issues []IntegrityIssue
	for d, ids := range claims {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		issues = append(issues, IntegrityIssue{Date: d, RangeGroupIDs: ids})
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Date < issues[j].Date })
	return issues
}
