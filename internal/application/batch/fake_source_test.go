package batch

import (
	"context"
	"sync"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

// fakeSource implements port.TransactionSource with overridable functions
type fakeSource struct {
	mu sync.Mutex

	transactions map[int64]*entity.BatchTransaction
	lookups      int
	submits      int
	creates      int

	lookupFunc func(ctx context.Context, batchNumber int64) (*entity.BatchTransaction, error)
	submitFunc func(id int64, decision *entity.ValidationDecision) (*entity.BatchTransaction, error)
	createFunc func(payload *entity.NewTransaction) (*entity.BatchTransaction, error)
}

func newFakeSource(txs ...*entity.BatchTransaction) *fakeSource {
	f := &fakeSource{transactions: make(map[int64]*entity.BatchTransaction)}
	for _, tx := range txs {
		f.transactions[tx.BatchNumber] = tx
	}
	return f
}

func (f *fakeSource) LookupByBatchNumber(ctx context.Context, batchNumber int64) (*entity.BatchTransaction, error) {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()

	if f.lookupFunc != nil {
		return f.lookupFunc(ctx, batchNumber)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transactions[batchNumber], nil
}

func (f *fakeSource) SubmitValidationDecision(ctx context.Context, transactionID int64, decision *entity.ValidationDecision) (*entity.BatchTransaction, error) {
	f.mu.Lock()
	f.submits++
	f.mu.Unlock()

	if f.submitFunc != nil {
		return f.submitFunc(transactionID, decision)
	}
	return &entity.BatchTransaction{ID: transactionID, Status: entity.TransactionAccepted}, nil
}

func (f *fakeSource) CreateTransaction(ctx context.Context, payload *entity.NewTransaction) (*entity.BatchTransaction, error) {
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()

	if f.createFunc != nil {
		return f.createFunc(payload)
	}
	tx := &entity.BatchTransaction{ID: 900, BatchNumber: payload.BatchNumber, Status: entity.TransactionPending}
	for i, it := range payload.Items {
		tx.Items = append(tx.Items, &entity.TransactionItem{
			ID:                int64(i + 1),
			ItemTypeID:        it.ItemTypeID,
			RequestedQuantity: it.RequestedQuantity,
			MeasuringUnit:     it.MeasuringUnit,
		})
	}
	return tx, nil
}

func pendingTx(batchNumber int64) *entity.BatchTransaction {
	return &entity.BatchTransaction{
		ID:          55,
		BatchNumber: batchNumber,
		Status:      entity.TransactionPending,
		Items: []*entity.TransactionItem{
			{ID: 1, ItemTypeID: 10, RequestedQuantity: 4, MeasuringUnit: "pcs"},
			{ID: 2, ItemTypeID: 11, RequestedQuantity: 20, MeasuringUnit: "l"},
		},
	}
}
