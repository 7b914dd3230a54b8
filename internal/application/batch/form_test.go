package batch

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func intPtr(v int) *int { return &v }

func openForm(t *testing.T, src *fakeSource, batchNumber int64) (*Verifier, *ValidationForm) {
	t.Helper()
	v := NewVerifier(src, zap.NewNop())
	require.NoError(t, v.Enter(strconv.FormatInt(batchNumber, 10)))
	res, err := v.Lookup(context.Background())
	require.NoError(t, err)
	require.Equal(t, workflow.StatePendingValidation, res.State)
	form := v.Form()
	require.NotNil(t, form)
	return v, form
}

func TestNewValidationForm_RequiresPending(t *testing.T) {
	_, err := NewValidationForm(&entity.BatchTransaction{BatchNumber: 3, Status: entity.TransactionAccepted})
	assert.ErrorIs(t, err, entity.ErrConflict)

	_, err = NewValidationForm(nil)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestValidationForm_DefaultsToRequestedQuantities(t *testing.T) {
	form, err := NewValidationForm(pendingTx(40))
	require.NoError(t, err)

	d := form.Decision()
	assert.Equal(t, entity.ActionAccept, d.Action)
	require.Len(t, d.Items, 2)
	assert.Equal(t, 4, *d.Items[1].ReceivedQuantity)
	assert.Equal(t, 20, *d.Items[2].ReceivedQuantity)
	assert.True(t, form.IsValid())
}

func TestValidationForm_NotReceivedLocksQuantity(t *testing.T) {
	form, err := NewValidationForm(pendingTx(40))
	require.NoError(t, err)

	require.NoError(t, form.ToggleNotReceived(1, true))
	d := form.Decision()
	assert.True(t, d.Items[1].NotReceived)
	assert.Equal(t, 0, *d.Items[1].ReceivedQuantity)
	assert.Equal(t, 20, *d.Items[2].ReceivedQuantity)
	assert.True(t, form.IsValid())

	err = form.SetQuantity(1, intPtr(3))
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Equal(t, 0, *form.Decision().Items[1].ReceivedQuantity)

	require.NoError(t, form.ToggleNotReceived(1, false))
	assert.Equal(t, 4, *form.Decision().Items[1].ReceivedQuantity)

	assert.ErrorIs(t, form.ToggleNotReceived(99, true), entity.ErrNotFound)
}

func TestValidationForm_QuantityRules(t *testing.T) {
	form, err := NewValidationForm(pendingTx(40))
	require.NoError(t, err)

	require.NoError(t, form.SetQuantity(2, nil))
	assert.False(t, form.IsValid())
	assert.Equal(t, []string{"item 2: received quantity is required"}, form.Problems())

	require.NoError(t, form.SetQuantity(2, intPtr(-1)))
	assert.False(t, form.IsValid())

	require.NoError(t, form.SetQuantity(2, intPtr(0)))
	assert.True(t, form.IsValid())
}

func TestValidationForm_RejectNeedsReason(t *testing.T) {
	form, err := NewValidationForm(pendingTx(40))
	require.NoError(t, err)

	require.NoError(t, form.SetAction(entity.ActionReject))
	assert.False(t, form.IsValid())
	assert.Contains(t, form.Problems(), "rejection reason is required")

	require.NoError(t, form.SetRejectionReason("   "))
	assert.False(t, form.IsValid())

	require.NoError(t, form.SetRejectionReason("damaged on delivery"))
	assert.True(t, form.IsValid())
	d := form.Decision()
	assert.Equal(t, "damaged on delivery", d.RejectionReason)
	assert.Empty(t, d.Items)

	assert.ErrorIs(t, form.SetAction("maybe"), entity.ErrValidation)
}

func TestValidationForm_DecisionIsACopy(t *testing.T) {
	form, err := NewValidationForm(pendingTx(40))
	require.NoError(t, err)

	d := form.Decision()
	*d.Items[1].ReceivedQuantity = 99
	assert.Equal(t, 4, *form.Decision().Items[1].ReceivedQuantity)
}

func TestValidationForm_ViewFollowsItemOrder(t *testing.T) {
	form, err := NewValidationForm(pendingTx(40))
	require.NoError(t, err)
	require.NoError(t, form.ToggleNotReceived(2, true))

	view := form.View()
	require.Len(t, view.Items, 2)
	assert.Equal(t, int64(1), view.Items[0].ItemID)
	assert.False(t, view.Items[0].NotReceived)
	assert.True(t, view.Items[1].NotReceived)
	assert.Equal(t, 0, *view.Items[1].ReceivedQuantity)
	assert.True(t, view.Valid)
}

func TestValidationForm_CancelResetsVerifier(t *testing.T) {
	v, form := openForm(t, newFakeSource(pendingTx(40)), 40)

	form.Cancel()
	assert.Equal(t, workflow.StateUnchecked, v.State())
	assert.Nil(t, v.Form())
	assert.Equal(t, int64(40), v.BatchNumber())
	assert.ErrorIs(t, form.SetComments("x"), ErrFormDiscarded)
}

func TestGate_SubmitAcceptWithNotReceivedItem(t *testing.T) {
	src := newFakeSource(pendingTx(40))
	var sent *entity.ValidationDecision
	src.submitFunc = func(id int64, d *entity.ValidationDecision) (*entity.BatchTransaction, error) {
		sent = d
		return &entity.BatchTransaction{ID: id, BatchNumber: 40, Status: entity.TransactionAccepted}, nil
	}
	_, form := openForm(t, src, 40)
	require.NoError(t, form.ToggleNotReceived(1, true))

	res, err := NewGate(src, zap.NewNop()).Submit(context.Background(), form)
	require.NoError(t, err)
	assert.True(t, res.Proceed)
	assert.Equal(t, entity.TransactionAccepted, res.Transaction.Status)

	require.NotNil(t, sent)
	assert.Equal(t, entity.ActionAccept, sent.Action)
	assert.True(t, sent.Items[1].NotReceived)
	assert.Equal(t, 0, *sent.Items[1].ReceivedQuantity)
	assert.Equal(t, 20, *sent.Items[2].ReceivedQuantity)

	_, err = NewGate(src, zap.NewNop()).Submit(context.Background(), form)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, src.submits)
}

func TestGate_InvalidFormNeverReachesBackend(t *testing.T) {
	src := newFakeSource(pendingTx(40))
	_, form := openForm(t, src, 40)
	require.NoError(t, form.SetAction(entity.ActionReject))

	res, err := NewGate(src, zap.NewNop()).Submit(context.Background(), form)
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.False(t, res.Proceed)
	assert.Equal(t, 0, src.submits)
}

func TestGate_BackendFailureBlocksHostSave(t *testing.T) {
	src := newFakeSource(pendingTx(40))
	src.submitFunc = func(id int64, d *entity.ValidationDecision) (*entity.BatchTransaction, error) {
		return nil, entity.NewNetworkError("submit decision", 502, errors.New("bad gateway"))
	}
	_, form := openForm(t, src, 40)

	gate := NewGate(src, zap.NewNop())
	res, err := gate.Submit(context.Background(), form)
	assert.True(t, entity.IsRetryable(err))
	assert.False(t, res.Proceed)

	src.submitFunc = nil
	res, err = gate.Submit(context.Background(), form)
	require.NoError(t, err)
	assert.True(t, res.Proceed)
}

func TestGate_DiscardedFormIsRefused(t *testing.T) {
	src := newFakeSource(pendingTx(40))
	v, form := openForm(t, src, 40)
	require.NoError(t, v.Enter("41"))

	res, err := NewGate(src, zap.NewNop()).Submit(context.Background(), form)
	assert.ErrorIs(t, err, ErrFormDiscarded)
	assert.False(t, res.Proceed)
	assert.Equal(t, 0, src.submits)
}

func TestGate_CreateOnlyForFreeBatchNumber(t *testing.T) {
	src := newFakeSource(&entity.BatchTransaction{ID: 1, BatchNumber: 777, Status: entity.TransactionAccepted})
	gate := NewGate(src, zap.NewNop())
	payload := func() *entity.NewTransaction {
		return &entity.NewTransaction{Items: []entity.NewTransactionItem{
			{ItemTypeID: 10, RequestedQuantity: 3, MeasuringUnit: "pcs"},
		}}
	}

	v := NewVerifier(src, zap.NewNop())
	require.NoError(t, v.Enter("777"))
	_, err := gate.Create(context.Background(), v, payload())
	assert.ErrorIs(t, err, entity.ErrConflict)

	_, err = v.Lookup(context.Background())
	require.NoError(t, err)
	_, err = gate.Create(context.Background(), v, payload())
	assert.ErrorIs(t, err, entity.ErrConflict)

	require.NoError(t, v.Enter("12345"))
	_, err = v.Lookup(context.Background())
	require.NoError(t, err)
	require.True(t, v.CanCreate())

	mismatched := payload()
	mismatched.BatchNumber = 1
	_, err = gate.Create(context.Background(), v, mismatched)
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = gate.Create(context.Background(), v, &entity.NewTransaction{})
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Equal(t, 0, src.creates)

	res, err := gate.Create(context.Background(), v, payload())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatePendingValidation, res.State)
	assert.Equal(t, int64(12345), res.Transaction.BatchNumber)
	assert.NotNil(t, v.Form())
	assert.Equal(t, 1, src.creates)
}

func TestGate_EmptyBackendReplyIsNetworkError(t *testing.T) {
	src := newFakeSource(pendingTx(40))
	src.createFunc = func(*entity.NewTransaction) (*entity.BatchTransaction, error) { return nil, nil }
	src.submitFunc = func(int64, *entity.ValidationDecision) (*entity.BatchTransaction, error) { return nil, nil }
	gate := NewGate(src, zap.NewNop())

	v := NewVerifier(src, zap.NewNop())
	require.NoError(t, v.Enter("12345"))
	_, err := v.Lookup(context.Background())
	require.NoError(t, err)

	res, err := gate.Create(context.Background(), v, &entity.NewTransaction{Items: []entity.NewTransactionItem{
		{ItemTypeID: 10, RequestedQuantity: 3, MeasuringUnit: "pcs"},
	}})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, entity.ErrNetwork)
	assert.Equal(t, workflow.StateNotFound, v.State())

	require.NoError(t, v.Enter("40"))
	_, err = v.Lookup(context.Background())
	require.NoError(t, err)
	form := v.Form()
	require.NotNil(t, form)

	sub, err := gate.Submit(context.Background(), form)
	assert.ErrorIs(t, err, entity.ErrNetwork)
	require.NotNil(t, sub)
	assert.False(t, sub.Proceed)
}
