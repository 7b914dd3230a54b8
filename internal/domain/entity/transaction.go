package entity

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// TransactionStatus is the backend status of a batch transaction
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "PENDING"
	TransactionAccepted TransactionStatus = "ACCEPTED"
	TransactionRejected TransactionStatus = "REJECTED"
)

// KnownTransactionStatuses lists every status with a dedicated classification.
// Anything else is treated as OTHER.
var KnownTransactionStatuses = []TransactionStatus{
	TransactionPending,
	TransactionAccepted,
	TransactionRejected,
}

// String returns the string representation of the status
func (s TransactionStatus) String() string {
	return string(s)
}

// Normalize upper-cases and trims a raw backend status
func (s TransactionStatus) Normalize() TransactionStatus {
	return TransactionStatus(strings.ToUpper(strings.TrimSpace(string(s))))
}

// BatchTransaction is an inventory transaction correlated by batch number
type BatchTransaction struct {
	ID              int64              `json:"id"`
	BatchNumber     int64              `json:"batch_number"`
	Status          TransactionStatus  `json:"status"`
	Items           []*TransactionItem `json:"items"`
	Comments        string             `json:"comments,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Item returns the item with the given ID, or nil
func (t *BatchTransaction) Item(id int64) *TransactionItem {
	for _, it := range t.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// TransactionItem is one requested line of a batch transaction
type TransactionItem struct {
	ID                int64  `json:"id"`
	ItemTypeID        int64  `json:"item_type_id"`
	RequestedQuantity int    `json:"requested_quantity"`
	MeasuringUnit     string `json:"measuring_unit"`
	ReceivedQuantity  *int   `json:"received_quantity,omitempty"`
	NotReceived       bool   `json:"not_received,omitempty"`
}

// NewTransaction is the payload for creating a transaction under a free batch number
type NewTransaction struct {
	BatchNumber int64                `json:"batch_number" validate:"required,gt=0"`
	Comments    string               `json:"comments,omitempty"`
	Items       []NewTransactionItem `json:"items" validate:"required,min=1,dive"`
}

// NewTransactionItem is one requested line of a new transaction
type NewTransactionItem struct {
	ItemTypeID        int64  `json:"item_type_id" validate:"required,gt=0"`
	RequestedQuantity int    `json:"requested_quantity" validate:"gt=0"`
	MeasuringUnit     string `json:"measuring_unit" validate:"required"`
}

// DecisionAction is the outcome chosen on a pending transaction
type DecisionAction string

const (
	ActionAccept DecisionAction = "accept"
	ActionReject DecisionAction = "reject"
)

// IsValid returns true for accept and reject
func (a DecisionAction) IsValid() bool {
	return a == ActionAccept || a == ActionReject
}

// ItemDecision records what was received for one transaction item
type ItemDecision struct {
	ReceivedQuantity *int `json:"received_quantity"`
	NotReceived      bool `json:"not_received"`
}

// ValidationDecision accepts or rejects a pending transaction
type ValidationDecision struct {
	Action          DecisionAction         `json:"action"`
	Items           map[int64]ItemDecision `json:"items,omitempty"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	Comments        string                 `json:"comments,omitempty"`
}

// Problems returns every reason the decision is not well-formed, or nil
func (d *ValidationDecision) Problems() []string {
	var problems []string
	switch d.Action {
	case ActionAccept:
		ids := make([]int64, 0, len(d.Items))
		for id := range d.Items {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			item := d.Items[id]
			if item.NotReceived {
				continue
			}
			label := "item " + strconv.FormatInt(id, 10)
			if item.ReceivedQuantity == nil {
				problems = append(problems, label+": received quantity is required")
			} else if *item.ReceivedQuantity < 0 {
				problems = append(problems, label+": received quantity must not be negative")
			}
		}
	case ActionReject:
		if strings.TrimSpace(d.RejectionReason) == "" {
			problems = append(problems, "rejection reason is required")
		}
	default:
		problems = append(problems, "action must be accept or reject")
	}
	return problems
}

// WellFormed reports whether the decision may be submitted
func (d *ValidationDecision) WellFormed() bool {
	return len(d.Problems()) == 0
}

// Clone returns a deep copy of the decision
func (d *ValidationDecision) Clone() *ValidationDecision {
	c := *d
	c.Items = make(map[int64]ItemDecision, len(d.Items))
	for id, item := range d.Items {
		if item.ReceivedQuantity != nil {
			q := *item.ReceivedQuantity
			item.ReceivedQuantity = &q
		}
		c.Items[id] = item
	}
	return &c
}
