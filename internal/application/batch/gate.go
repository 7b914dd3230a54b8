package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/fleet-worklog/internal/application/port"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/workflow"
	"github.com/garyjia/fleet-worklog/pkg/utils"
	"go.uber.org/zap"
)

// SubmitResult tells the host whether its own save may proceed
type SubmitResult struct {
	Proceed     bool                     `json:"proceed"`
	Transaction *entity.BatchTransaction `json:"transaction,omitempty"`
}

// Gate submits validation decisions and creates transactions for free
// batch numbers. A host saving a record that links a batch must call
// Submit first and abort its own save unless Proceed is true.
type Gate struct {
	source port.TransactionSource
	logger *zap.Logger
}

// NewGate creates a new decision gate
func NewGate(source port.TransactionSource, logger *zap.Logger) *Gate {
	return &Gate{source: source, logger: logger}
}

// Submit sends the form's decision. Local problems fail with a
// ValidationError before any request is made. A backend failure returns
// Proceed=false together with the error; the form stays editable so the
// user can retry.
func (g *Gate) Submit(ctx context.Context, form *ValidationForm) (*SubmitResult, error) {
	if form == nil {
		return nil, entity.NewValidationError("form", nil, "is required")
	}

	decision, err := form.beginSubmit()
	if err != nil {
		return &SubmitResult{}, err
	}

	v := form.verifier
	if v != nil && !v.owns(form) {
		return &SubmitResult{}, entity.NewConflictError("validation form",
			"the batch number changed; look it up again before submitting")
	}

	tx := form.Transaction()
	saved, err := g.source.SubmitValidationDecision(ctx, tx.ID, decision)
	if err == nil && saved == nil {
		err = entity.NewNetworkError("submit decision", 0, errors.New("backend returned no transaction"))
	}
	if err != nil {
		g.logger.Error("Validation decision rejected",
			zap.Int64("batch_number", tx.BatchNumber),
			zap.String("action", string(decision.Action)),
			zap.Error(err))
		return &SubmitResult{}, err
	}

	form.markSubmitted(saved)
	g.logger.Info("Validation decision submitted",
		zap.Int64("batch_number", tx.BatchNumber),
		zap.String("action", string(decision.Action)))

	return &SubmitResult{Proceed: true, Transaction: saved}, nil
}

// Create makes a new transaction under the verifier's batch number. It is
// only allowed after a lookup ended in NOT_FOUND; the verifier then
// classifies the created transaction as if it had been looked up.
func (g *Gate) Create(ctx context.Context, v *Verifier, payload *entity.NewTransaction) (*Result, error) {
	if v == nil || payload == nil {
		return nil, entity.NewValidationError("transaction", nil, "is required")
	}
	if state := v.State(); state != workflow.StateNotFound {
		return nil, entity.NewConflictError("transaction",
			fmt.Sprintf("a transaction can only be created for an unused batch number (state is %s)", state))
	}

	batchNumber := v.BatchNumber()
	if payload.BatchNumber == 0 {
		payload.BatchNumber = batchNumber
	}
	if payload.BatchNumber != batchNumber {
		return nil, entity.NewValidationError("batch_number", payload.BatchNumber,
			fmt.Sprintf("does not match the verified batch number %d", batchNumber))
	}
	if err := utils.ValidateStruct(payload); err != nil {
		var fe *utils.FieldError
		if errors.As(err, &fe) {
			return nil, entity.NewValidationError(fe.Field, nil, fe.Message)
		}
		return nil, entity.NewValidationError("transaction", nil, err.Error())
	}

	tx, err := g.source.CreateTransaction(ctx, payload)
	if err == nil && tx == nil {
		err = entity.NewNetworkError("create transaction", 0, errors.New("backend returned no transaction"))
	}
	if err != nil {
		g.logger.Error("Failed to create transaction", zap.Int64("batch_number", batchNumber), zap.Error(err))
		return nil, err
	}

	g.logger.Info("Transaction created", zap.Int64("batch_number", batchNumber), zap.Int64("transaction_id", tx.ID))
	return v.adopt(ctx, tx)
}
