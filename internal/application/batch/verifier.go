package batch

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/workflow"
	"go.uber.org/zap"
)

// Result is a snapshot of the verifier after a lookup or reset
type Result struct {
	BatchNumber int64                    `json:"batch_number,omitempty"`
	State       workflow.State           `json:"state"`
	Message     string                   `json:"message"`
	Transaction *entity.BatchTransaction `json:"transaction,omitempty"`
	Retryable   bool                     `json:"retryable"`
	CanCreate   bool                     `json:"can_create"`
	CanLink     bool                     `json:"can_link"`
	Err         error                    `json:"-"`
}

// Verifier classifies a batch number against the transaction backend.
//
// Entering a batch number resets the machine to UNCHECKED, discards the
// decision form and cancels the lookup in flight. Every reset and every
// lookup starts a new generation; a response from an older generation is
// dropped, so the most recent request always wins.
type Verifier struct {
	mu      sync.Mutex
	source  port.TransactionSource
	machine workflow.StateMachine
	logger  *zap.Logger

	batchNumber int64
	generation  uint64
	cancel      context.CancelFunc

	tx      *entity.BatchTransaction
	lastErr error
	form    *ValidationForm
}

// NewVerifier creates a verifier in the UNCHECKED state
func NewVerifier(source port.TransactionSource, logger *zap.Logger) *Verifier {
	return &Verifier{
		source:  source,
		machine: workflow.NewVerificationBuilder().Build(workflow.StateUnchecked),
		logger:  logger,
	}
}

// Enter replaces the batch number. The raw value must be a positive
// integer; an invalid value still resets the verifier but fails with a
// ValidationError and leaves no batch number to look up.
func (v *Verifier) Enter(raw string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.resetLocked()

	n, err := ParseBatchNumber(raw)
	if err != nil {
		return err
	}
	v.batchNumber = n
	return nil
}

// Reset returns to UNCHECKED, keeping the batch number
func (v *Verifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resetLocked()
}

// Lookup queries the backend for the current batch number and classifies
// the answer. Transport failures land in ERROR and are reported on the
// result, not as an error. ErrSuperseded is returned when the batch
// number changed before the response arrived.
func (v *Verifier) Lookup(ctx context.Context) (*Result, error) {
	v.mu.Lock()
	if v.batchNumber == 0 {
		v.mu.Unlock()
		return nil, entity.NewValidationError("batch_number", nil, "enter a batch number first")
	}
	if !v.machine.CanFire(workflow.TriggerLookup) {
		v.fireLocked(ctx, workflow.TriggerReset)
	}
	v.discardFormLocked()
	v.fireLocked(ctx, workflow.TriggerLookup)

	if v.cancel != nil {
		v.cancel()
	}
	lookupCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.generation++
	gen := v.generation
	batchNumber := v.batchNumber
	v.mu.Unlock()

	defer cancel()
	tx, err := v.source.LookupByBatchNumber(lookupCtx, batchNumber)

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.generation || v.machine.State() != workflow.StateChecking {
		v.logger.Info("Discarding superseded batch lookup", zap.Int64("batch_number", batchNumber))
		return nil, ErrSuperseded
	}
	v.cancel = nil

	v.applyLocked(ctx, tx, err)
	return v.resultLocked(), nil
}

// State returns the current verification state
func (v *Verifier) State() workflow.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.machine.State()
}

// Message returns the human-readable description of the current state
func (v *Verifier) Message() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return describe(v.machine.State(), v.batchNumber, v.tx, v.lastErr)
}

// Snapshot returns the current state as a Result
func (v *Verifier) Snapshot() *Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resultLocked()
}

// BatchNumber returns the batch number entered last, or 0
func (v *Verifier) BatchNumber() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.batchNumber
}

// Transaction returns the transaction found by the last lookup, or nil
func (v *Verifier) Transaction() *entity.BatchTransaction {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tx
}

// Form returns the decision form of a PENDING transaction, or nil
func (v *Verifier) Form() *ValidationForm {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.form
}

// CanCreate reports whether a new transaction may be created under the batch number
func (v *Verifier) CanCreate() bool {
	return v.State() == workflow.StateNotFound
}

// CanLink reports whether the found transaction may be linked once validated
func (v *Verifier) CanLink() bool {
	return v.State() == workflow.StatePendingValidation
}

// Retryable reports whether the last lookup failed and may be repeated
func (v *Verifier) Retryable() bool {
	return v.State() == workflow.StateError
}

// adopt classifies a transaction created under the current batch number.
// It fails with ErrSuperseded when the batch number changed meanwhile.
func (v *Verifier) adopt(ctx context.Context, tx *entity.BatchTransaction) (*Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if tx.BatchNumber != v.batchNumber || v.machine.State() != workflow.StateNotFound {
		return nil, ErrSuperseded
	}
	v.fireLocked(ctx, workflow.TriggerLookup)
	v.applyLocked(ctx, tx, nil)
	return v.resultLocked(), nil
}

// release resets the verifier when form is still its decision form
func (v *Verifier) release(form *ValidationForm) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.form != form {
		return
	}
	v.resetLocked()
}

// owns reports whether form is the verifier's current decision form
func (v *Verifier) owns(form *ValidationForm) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.form == form && v.machine.State() == workflow.StatePendingValidation
}

func (v *Verifier) applyLocked(ctx context.Context, tx *entity.BatchTransaction, err error) {
	trigger := classify(tx, err)
	v.tx = tx
	v.lastErr = nil
	if err != nil {
		v.tx = nil
		v.lastErr = err
	}
	state := v.fireLocked(ctx, trigger)

	if state == workflow.StatePendingValidation {
		form, ferr := NewValidationForm(tx)
		if ferr == nil {
			form.verifier = v
			v.form = form
		}
	}

	fields := []zap.Field{
		zap.Int64("batch_number", v.batchNumber),
		zap.String("state", state.String()),
	}
	if err != nil {
		v.logger.Error("Batch lookup failed", append(fields, zap.Error(err))...)
		return
	}
	v.logger.Info("Batch classified", fields...)
}

func (v *Verifier) resultLocked() *Result {
	state := v.machine.State()
	return &Result{
		BatchNumber: v.batchNumber,
		State:       state,
		Message:     describe(state, v.batchNumber, v.tx, v.lastErr),
		Transaction: v.tx,
		Retryable:   state == workflow.StateError,
		CanCreate:   state == workflow.StateNotFound,
		CanLink:     state == workflow.StatePendingValidation,
		Err:         v.lastErr,
	}
}

func (v *Verifier) resetLocked() {
	v.generation++
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.discardFormLocked()
	v.tx = nil
	v.lastErr = nil
	v.fireLocked(context.Background(), workflow.TriggerReset)
}

func (v *Verifier) discardFormLocked() {
	if v.form != nil {
		v.form.discard()
		v.form = nil
	}
}

// fireLocked fires a trigger the lifecycle always permits at the call site
func (v *Verifier) fireLocked(ctx context.Context, trigger workflow.Trigger) workflow.State {
	state, err := v.machine.Fire(ctx, trigger)
	if err != nil {
		v.logger.Error("Unexpected verification transition", zap.String("trigger", trigger.String()), zap.Error(err))
	}
	return state
}

// ParseBatchNumber validates a user-supplied batch number
func ParseBatchNumber(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, entity.NewValidationError("batch_number", raw, "must be a positive integer")
	}
	return n, nil
}
