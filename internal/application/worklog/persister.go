package worklog

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Permissions carries what the caller may do with persisted entries
type Permissions struct {
	CanEdit bool
}

// SaveFailure records one entry that could not be saved
type SaveFailure struct {
	Ref string `json:"ref"`
	Err error  `json:"-"`
}

// SaveResult aggregates a SaveAll run
type SaveResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Failures  []SaveFailure `json:"-"`
}

// Persister writes store entries to the work entry source
type Persister struct {
	source      port.WorkEntrySource
	concurrency int
	logger      *zap.Logger
}

// NewPersister creates a persister. A concurrency below 2 saves sequentially.
func NewPersister(source port.WorkEntrySource, concurrency int, logger *zap.Logger) *Persister {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Persister{
		source:      source,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Save sends one unsaved entry to the backend. Missing required fields
// fail locally without a network call. A new entry receives its server
// identity; an edited one is marked clean. On a backend failure the
// entry keeps its unsaved state and carries the error in LastError.
func (p *Persister) Save(ctx context.Context, store *Store, ref string) (*entity.WorkEntry, error) {
	entry := store.Entry(ref)
	if entry == nil {
		return nil, entity.NewNotFoundError("work entry", ref)
	}
	if entry.IsRange() {
		return nil, ErrRangeEntry
	}
	if !entry.IsUnsaved() {
		return entry, nil
	}
	if err := validateForSave(entry); err != nil {
		return nil, err
	}

	var (
		saved *entity.WorkEntry
		err   error
	)
	if entry.IsNew() {
		saved, err = p.source.CreateEntry(ctx, store.Scope().EquipmentID, entry)
	} else {
		saved, err = p.source.UpdateEntry(ctx, entry.ID, entry)
	}
	if err == nil && saved == nil {
		err = entity.NewNetworkError("save entry", 0, errors.New("backend returned no entry"))
	}
	if err != nil {
		store.markFailed(ref, err)
		p.logger.Error("Failed to save work entry",
			zap.String("ref", ref),
			zap.Int64("id", entry.ID),
			zap.Error(err))
		return nil, fmt.Errorf("save entry %s: %w", ref, err)
	}

	result := store.markSaved(ref, entry, saved.ID)
	p.logger.Info("Work entry saved",
		zap.String("ref", ref),
		zap.Int64("id", saved.ID),
		zap.Bool("created", entry.IsNew()))
	return result, nil
}

// SaveAll saves every editable unsaved entry whose required fields are
// set. Incomplete entries are skipped and left as they are. A failure
// never stops the remaining saves and earlier successes are kept.
func (p *Persister) SaveAll(ctx context.Context, store *Store) *SaveResult {
	result := &SaveResult{}

	var refs []string
	for _, e := range store.Entries() {
		if !e.IsEditable() || !e.IsUnsaved() {
			continue
		}
		if !e.IsComplete() {
			result.Skipped++
			continue
		}
		refs = append(refs, e.Ref)
	}

	errs := make([]error, len(refs))
	if p.concurrency <= 1 {
		for i, ref := range refs {
			_, errs[i] = p.Save(ctx, store, ref)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for i, ref := range refs {
			i, ref := i, ref
			g.Go(func() error {
				_, errs[i] = p.Save(ctx, store, ref)
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, err := range errs {
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, SaveFailure{Ref: refs[i], Err: err})
			continue
		}
		result.Succeeded++
	}

	p.logger.Info("Save all finished",
		zap.String("scope", store.Scope().String()),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result
}

// Delete removes an entry. Unsaved new entries are dropped locally;
// persisted ones require edit permission and a backend delete.
func (p *Persister) Delete(ctx context.Context, store *Store, ref string, perms Permissions) error {
	entry := store.Entry(ref)
	if entry == nil {
		return entity.NewNotFoundError("work entry", ref)
	}
	if entry.IsRange() {
		return ErrRangeEntry
	}
	if entry.IsNew() {
		return store.Remove(ref)
	}
	if !perms.CanEdit {
		return fmt.Errorf("delete entry %s: %w", ref, entity.ErrPermissionDenied)
	}

	if err := p.source.DeleteEntry(ctx, entry.ID); err != nil {
		store.markFailed(ref, err)
		p.logger.Error("Failed to delete work entry", zap.String("ref", ref), zap.Int64("id", entry.ID), zap.Error(err))
		return fmt.Errorf("delete entry %s: %w", ref, err)
	}

	store.drop(ref)
	p.logger.Info("Work entry deleted", zap.String("ref", ref), zap.Int64("id", entry.ID))
	return nil
}

func validateForSave(e *entity.WorkEntry) error {
	if err := utils.ValidateStruct(e); err != nil {
		var fe *utils.FieldError
		if errors.As(err, &fe) {
			return entity.NewValidationError(fe.Field, nil, fe.Message)
		}
		return entity.NewValidationError("", nil, err.Error())
	}
	return nil
}

// markSaved applies a successful save. If the entry was edited while the
// request was in flight it keeps the new identity but stays a draft so
// the later edit is not lost.
func (s *Store) markSaved(ref string, sent *entity.WorkEntry, id int64) *entity.WorkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.singleIndexLocked(ref)
	if i < 0 {
		return nil
	}

	next := s.singles[i].Clone()
	next.ID = id
	next.LastError = ""
	if sameContent(next, sent) {
		next.Persistence = entity.PersistencePersisted
	} else {
		next.Persistence = entity.PersistenceDraft
	}
	s.singles[i] = next
	return next.Clone()
}

// markFailed attaches err to the entry without touching its state
func (s *Store) markFailed(ref string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.singleIndexLocked(ref); i >= 0 {
		next := s.singles[i].Clone()
		next.LastError = err.Error()
		s.singles[i] = next
	}
}

func (s *Store) drop(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.singleIndexLocked(ref); i >= 0 {
		s.dropLocked(i)
	}
}
