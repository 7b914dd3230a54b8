package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garyjia/fleet-worklog/internal/application/batch"
	"github.com/garyjia/fleet-worklog/internal/application/dispatcher"
	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/event"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL is how long an idle verification session is kept
const DefaultSessionTTL = 2 * time.Hour

// ErrNoForm is returned when a form operation runs while no PENDING
// transaction is being validated
var ErrNoForm = entity.NewConflictError("validation form", "no pending transaction is being validated")

// ItemUpdate edits one line of the decision form. Nil fields are left alone.
type ItemUpdate struct {
	ItemID           int64 `json:"item_id"`
	NotReceived      *bool `json:"not_received,omitempty"`
	ReceivedQuantity *int  `json:"received_quantity,omitempty"`
	ClearQuantity    bool  `json:"clear_quantity,omitempty"`
}

// FormUpdate edits the decision form. Nil fields are left alone.
type FormUpdate struct {
	Action          *entity.DecisionAction `json:"action,omitempty"`
	RejectionReason *string                `json:"rejection_reason,omitempty"`
	Comments        *string                `json:"comments,omitempty"`
	Items           []ItemUpdate           `json:"items,omitempty"`
}

// VerificationService manages batch verification sessions. Each host form
// session owns one verifier and at most one decision form.
type VerificationService interface {
	Open() string
	Close(sessionID string)
	Sweep() int
	Enter(sessionID, batchNumber string) (*batch.Result, error)
	Lookup(ctx context.Context, sessionID string) (*batch.Result, error)
	Snapshot(sessionID string) (*batch.Result, error)
	Form(sessionID string) (*batch.FormView, error)
	UpdateForm(sessionID string, update FormUpdate) (*batch.FormView, error)
	CancelForm(sessionID string) (*batch.Result, error)
	Submit(ctx context.Context, sessionID string) (*batch.SubmitResult, error)
	Create(ctx context.Context, sessionID string, payload *entity.NewTransaction) (*batch.Result, error)
}

type verificationSession struct {
	verifier *batch.Verifier
	lastUsed time.Time
}

type verificationServiceImpl struct {
	mu       sync.Mutex
	sessions map[string]*verificationSession
	ttl      time.Duration
	now      func() time.Time

	source     port.TransactionSource
	gate       *batch.Gate
	dispatcher dispatcher.Dispatcher
	zap        *zap.Logger
	logger     Logger
}

// NewVerificationService creates a new VerificationService. A ttl of zero
// uses DefaultSessionTTL.
func NewVerificationService(
	source port.TransactionSource,
	d dispatcher.Dispatcher,
	ttl time.Duration,
	zapLogger *zap.Logger,
	logger Logger,
) VerificationService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &verificationServiceImpl{
		sessions:   make(map[string]*verificationSession),
		ttl:        ttl,
		now:        time.Now,
		source:     source,
		gate:       batch.NewGate(source, zapLogger),
		dispatcher: d,
		zap:        zapLogger,
		logger:     logger,
	}
}

// Open starts a session and returns its ID. Idle sessions are swept.
func (s *verificationServiceImpl) Open() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	id := uuid.NewString()
	s.sessions[id] = &verificationSession{
		verifier: batch.NewVerifier(s.source, s.zap.With(zap.String("session_id", id))),
		lastUsed: now,
	}
	s.logger.Info("Verification session opened", "session_id", id)
	return id
}

// Close ends a session, cancelling its lookup in flight
func (s *verificationServiceImpl) Close(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		sess.verifier.Reset()
	}
}

// Sweep drops sessions idle for longer than the TTL and returns how many
func (s *verificationServiceImpl) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.sweepLocked(s.now())
	if n > 0 {
		s.logger.Info("Idle verification sessions swept", "count", n, "remaining", len(s.sessions))
	}
	return n
}

func (s *verificationServiceImpl) sweepLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.ttl {
			sess.verifier.Reset()
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Enter replaces the session's batch number
func (s *verificationServiceImpl) Enter(sessionID, batchNumber string) (*batch.Result, error) {
	v, err := s.verifier(sessionID)
	if err != nil {
		return nil, err
	}
	if err := v.Enter(batchNumber); err != nil {
		return nil, err
	}
	return v.Snapshot(), nil
}

// Lookup classifies the session's batch number
func (s *verificationServiceImpl) Lookup(ctx context.Context, sessionID string) (*batch.Result, error) {
	v, err := s.verifier(sessionID)
	if err != nil {
		return nil, err
	}

	res, err := v.Lookup(ctx)
	if errors.Is(err, batch.ErrSuperseded) {
		return v.Snapshot(), nil
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.NewBatchEvent(event.TypeBatchClassified, res.BatchNumber, map[string]interface{}{
		"session_id": sessionID,
		"state":      res.State.String(),
	}))
	return res, nil
}

// Snapshot returns the session's current state
func (s *verificationServiceImpl) Snapshot(sessionID string) (*batch.Result, error) {
	v, err := s.verifier(sessionID)
	if err != nil {
		return nil, err
	}
	return v.Snapshot(), nil
}

// Form returns the session's decision form
func (s *verificationServiceImpl) Form(sessionID string) (*batch.FormView, error) {
	form, err := s.form(sessionID)
	if err != nil {
		return nil, err
	}
	return form.View(), nil
}

// UpdateForm applies edits in order and stops at the first refused one
func (s *verificationServiceImpl) UpdateForm(sessionID string, update FormUpdate) (*batch.FormView, error) {
	form, err := s.form(sessionID)
	if err != nil {
		return nil, err
	}

	if update.Action != nil {
		if err := form.SetAction(*update.Action); err != nil {
			return nil, err
		}
	}
	if update.RejectionReason != nil {
		if err := form.SetRejectionReason(*update.RejectionReason); err != nil {
			return nil, err
		}
	}
	if update.Comments != nil {
		if err := form.SetComments(*update.Comments); err != nil {
			return nil, err
		}
	}
	for _, item := range update.Items {
		if err := applyItemUpdate(form, item); err != nil {
			return nil, err
		}
	}
	return form.View(), nil
}

// CancelForm discards the form and resets the verifier
func (s *verificationServiceImpl) CancelForm(sessionID string) (*batch.Result, error) {
	v, err := s.verifier(sessionID)
	if err != nil {
		return nil, err
	}
	if form := v.Form(); form != nil {
		form.Cancel()
	} else {
		v.Reset()
	}
	return v.Snapshot(), nil
}

// Submit sends the session's decision through the gate
func (s *verificationServiceImpl) Submit(ctx context.Context, sessionID string) (*batch.SubmitResult, error) {
	form, err := s.form(sessionID)
	if err != nil {
		return nil, err
	}

	tx := form.Transaction()
	res, err := s.gate.Submit(ctx, form)
	if err != nil {
		s.logger.Error("Decision submission failed", "session_id", sessionID, "error", err)
		return res, err
	}

	decision := form.Decision()
	s.publish(ctx, event.NewBatchEvent(event.TypeDecisionSubmitted, tx.BatchNumber, map[string]interface{}{
		"session_id":     sessionID,
		"action":         string(decision.Action),
		"transaction_id": tx.ID,
	}))
	return res, nil
}

// Create makes a transaction under a batch number that has none
func (s *verificationServiceImpl) Create(ctx context.Context, sessionID string, payload *entity.NewTransaction) (*batch.Result, error) {
	v, err := s.verifier(sessionID)
	if err != nil {
		return nil, err
	}

	res, err := s.gate.Create(ctx, v, payload)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event.NewBatchEvent(event.TypeTransactionCreated, res.BatchNumber, map[string]interface{}{
		"session_id":     sessionID,
		"transaction_id": res.Transaction.ID,
	}))
	return res, nil
}

func (s *verificationServiceImpl) verifier(sessionID string) (*batch.Verifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, entity.NewNotFoundError("verification session", sessionID)
	}
	sess.lastUsed = s.now()
	return sess.verifier, nil
}

func (s *verificationServiceImpl) form(sessionID string) (*batch.ValidationForm, error) {
	v, err := s.verifier(sessionID)
	if err != nil {
		return nil, err
	}
	form := v.Form()
	if form == nil {
		return nil, ErrNoForm
	}
	return form, nil
}

func (s *verificationServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.dispatcher != nil {
		s.dispatcher.Publish(ctx, evt)
	}
}

func applyItemUpdate(form *batch.ValidationForm, item ItemUpdate) error {
	if item.NotReceived != nil {
		if err := form.ToggleNotReceived(item.ItemID, *item.NotReceived); err != nil {
			return err
		}
	}
	switch {
	case item.ClearQuantity:
		return form.SetQuantity(item.ItemID, nil)
	case item.ReceivedQuantity != nil:
		return form.SetQuantity(item.ItemID, item.ReceivedQuantity)
	}
	return nil
}
