package batch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
	"github.com/garyjia/fleet-worklog/pkg/utils"
)

// FormItem is the editable view of one transaction item
type FormItem struct {
	ItemID            int64  `json:"item_id"`
	ItemTypeID        int64  `json:"item_type_id"`
	RequestedQuantity int    `json:"requested_quantity"`
	MeasuringUnit     string `json:"measuring_unit"`
	ReceivedQuantity  *int   `json:"received_quantity"`
	NotReceived       bool   `json:"not_received"`
}

// FormView is a read-only snapshot of a ValidationForm
type FormView struct {
	TransactionID   int64                 `json:"transaction_id"`
	BatchNumber     int64                 `json:"batch_number"`
	Action          entity.DecisionAction `json:"action"`
	Items           []FormItem            `json:"items"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	Comments        string                `json:"comments,omitempty"`
	Valid           bool                  `json:"valid"`
	Problems        []string              `json:"problems,omitempty"`
	Submitted       bool                  `json:"submitted"`
}

// ValidationForm builds the accept/reject decision for a PENDING
// transaction. Validity is recomputed after every change.
type ValidationForm struct {
	mu       sync.Mutex
	tx       *entity.BatchTransaction
	verifier *Verifier

	action          entity.DecisionAction
	items           map[int64]entity.ItemDecision
	rejectionReason string
	comments        string

	problems  []string
	discarded bool
	submitted bool
}

// NewValidationForm starts an accept decision where every item's
// received quantity defaults to its requested quantity
func NewValidationForm(tx *entity.BatchTransaction) (*ValidationForm, error) {
	if tx == nil {
		return nil, entity.NewValidationError("transaction", nil, "is required")
	}
	if tx.Status.Normalize() != entity.TransactionPending {
		return nil, entity.NewConflictError("validation form",
			fmt.Sprintf("batch %d is %s; only PENDING transactions can be validated", tx.BatchNumber, tx.Status))
	}

	f := &ValidationForm{
		tx:     tx,
		action: entity.ActionAccept,
		items:  make(map[int64]entity.ItemDecision, len(tx.Items)),
	}
	for _, it := range tx.Items {
		q := it.RequestedQuantity
		f.items[it.ID] = entity.ItemDecision{ReceivedQuantity: &q}
	}
	f.recompute()
	return f, nil
}

// Transaction returns the transaction being validated
func (f *ValidationForm) Transaction() *entity.BatchTransaction {
	return f.tx
}

// SetAction switches between accept and reject
func (f *ValidationForm) SetAction(action entity.DecisionAction) error {
	return f.edit(func() error {
		if !action.IsValid() {
			return entity.NewValidationError("action", string(action), "must be accept or reject")
		}
		f.action = action
		return nil
	})
}

// ToggleNotReceived marks an item as not received, forcing its quantity
// to 0 and locking it. Clearing the mark restores the requested quantity.
func (f *ValidationForm) ToggleNotReceived(itemID int64, notReceived bool) error {
	return f.edit(func() error {
		item := f.tx.Item(itemID)
		if item == nil {
			return entity.NewNotFoundError("transaction item", fmt.Sprintf("%d", itemID))
		}

		q := 0
		if !notReceived {
			q = item.RequestedQuantity
		}
		f.items[itemID] = entity.ItemDecision{ReceivedQuantity: &q, NotReceived: notReceived}
		return nil
	})
}

// SetQuantity sets an item's received quantity; nil clears it. Items
// marked not received cannot be edited.
func (f *ValidationForm) SetQuantity(itemID int64, quantity *int) error {
	return f.edit(func() error {
		d, ok := f.items[itemID]
		if !ok {
			return entity.NewNotFoundError("transaction item", fmt.Sprintf("%d", itemID))
		}
		if d.NotReceived {
			return entity.NewValidationError("received_quantity", itemID,
				fmt.Sprintf("item %d is marked not received", itemID))
		}

		if quantity == nil {
			d.ReceivedQuantity = nil
		} else {
			q := *quantity
			d.ReceivedQuantity = &q
		}
		f.items[itemID] = d
		return nil
	})
}

// SetRejectionReason sets the reason required by a reject decision
func (f *ValidationForm) SetRejectionReason(reason string) error {
	return f.edit(func() error {
		f.rejectionReason = utils.SanitizeString(reason)
		return nil
	})
}

// SetComments sets optional free-text comments
func (f *ValidationForm) SetComments(comments string) error {
	return f.edit(func() error {
		f.comments = utils.SanitizeString(comments)
		return nil
	})
}

// IsValid reports whether the current decision is well-formed
func (f *ValidationForm) IsValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.problems) == 0
}

// Problems lists why the decision is not well-formed
func (f *ValidationForm) Problems() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.problems...)
}

// Decision returns a deep copy of the decision being built
func (f *ValidationForm) Decision() *entity.ValidationDecision {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decisionLocked().Clone()
}

// View returns a snapshot for display
func (f *ValidationForm) View() *FormView {
	f.mu.Lock()
	defer f.mu.Unlock()

	view := &FormView{
		TransactionID:   f.tx.ID,
		BatchNumber:     f.tx.BatchNumber,
		Action:          f.action,
		RejectionReason: f.rejectionReason,
		Comments:        f.comments,
		Valid:           len(f.problems) == 0,
		Problems:        append([]string(nil), f.problems...),
		Submitted:       f.submitted,
	}
	for _, it := range f.tx.Items {
		d := f.items[it.ID]
		item := FormItem{
			ItemID:            it.ID,
			ItemTypeID:        it.ItemTypeID,
			RequestedQuantity: it.RequestedQuantity,
			MeasuringUnit:     it.MeasuringUnit,
			NotReceived:       d.NotReceived,
		}
		if d.ReceivedQuantity != nil {
			q := *d.ReceivedQuantity
			item.ReceivedQuantity = &q
		}
		view.Items = append(view.Items, item)
	}
	return view
}

// Cancel discards the decision and returns the verifier to UNCHECKED.
// A form the verifier has already replaced leaves the verifier alone.
func (f *ValidationForm) Cancel() {
	f.mu.Lock()
	f.discarded = true
	v := f.verifier
	f.mu.Unlock()

	if v != nil {
		v.release(f)
	}
}

// Discarded reports whether the form was cancelled or replaced
func (f *ValidationForm) Discarded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discarded
}

func (f *ValidationForm) edit(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.discarded {
		return ErrFormDiscarded
	}
	if f.submitted {
		return ErrAlreadySubmitted
	}
	if err := fn(); err != nil {
		return err
	}
	f.recompute()
	return nil
}

func (f *ValidationForm) recompute() {
	f.problems = f.decisionLocked().Problems()
}

func (f *ValidationForm) decisionLocked() *entity.ValidationDecision {
	d := &entity.ValidationDecision{
		Action:   f.action,
		Comments: strings.TrimSpace(f.comments),
	}
	if f.action == entity.ActionReject {
		d.RejectionReason = strings.TrimSpace(f.rejectionReason)
		return d
	}
	d.Items = make(map[int64]entity.ItemDecision, len(f.items))
	for id, item := range f.items {
		d.Items[id] = item
	}
	return d
}

func (f *ValidationForm) discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = true
}

// beginSubmit checks the form can be sent and returns its decision
func (f *ValidationForm) beginSubmit() (*entity.ValidationDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.discarded {
		return nil, ErrFormDiscarded
	}
	if f.submitted {
		return nil, ErrAlreadySubmitted
	}
	if len(f.problems) > 0 {
		return nil, entity.NewValidationError("decision", nil, strings.Join(f.problems, "; "))
	}
	return f.decisionLocked().Clone(), nil
}

func (f *ValidationForm) markSubmitted(tx *entity.BatchTransaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = true
	if tx != nil {
		f.tx = tx
	}
}
