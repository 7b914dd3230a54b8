package service

import (
	"context"
	"sync"

	"github.com/garyjia/fleet-worklog/internal/application/worklog"
	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

type nopServiceLogger struct{}

func (nopServiceLogger) Info(string, ...interface{})  {}
func (nopServiceLogger) Error(string, ...interface{}) {}

// memoryBackend implements both sources in memory
type memoryBackend struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*entity.WorkEntry
	txs     map[int64]*entity.BatchTransaction

	createErr func(entry *entity.WorkEntry) error
	submitErr error
	decisions []*entity.ValidationDecision
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		nextID:  100,
		entries: make(map[int64]*entity.WorkEntry),
		txs:     make(map[int64]*entity.BatchTransaction),
	}
}

func (m *memoryBackend) FetchSingleEntries(ctx context.Context, equipmentID int64) ([]*entity.WorkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkEntry
	for _, e := range m.entries {
		if e.EquipmentID == equipmentID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *memoryBackend) FetchRangeEntries(ctx context.Context, equipmentID int64) ([]*entity.RangeGroup, error) {
	return nil, nil
}

func (m *memoryBackend) CreateEntry(ctx context.Context, equipmentID int64, entry *entity.WorkEntry) (*entity.WorkEntry, error) {
	if m.createErr != nil {
		if err := m.createErr(entry); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	saved := entry.Clone()
	saved.ID = m.nextID
	saved.EquipmentID = equipmentID
	saved.Persistence = entity.PersistencePersisted
	m.entries[saved.ID] = saved.Clone()
	return saved, nil
}

func (m *memoryBackend) UpdateEntry(ctx context.Context, id int64, entry *entity.WorkEntry) (*entity.WorkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return nil, entity.NewNotFoundError("work entry", "x")
	}
	saved := entry.Clone()
	saved.Persistence = entity.PersistencePersisted
	m.entries[id] = saved.Clone()
	return saved, nil
}

func (m *memoryBackend) DeleteEntry(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *memoryBackend) LookupByBatchNumber(ctx context.Context, batchNumber int64) (*entity.BatchTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txs[batchNumber], nil
}

func (m *memoryBackend) SubmitValidationDecision(ctx context.Context, transactionID int64, decision *entity.ValidationDecision) (*entity.BatchTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	m.decisions = append(m.decisions, decision)
	for _, tx := range m.txs {
		if tx.ID == transactionID {
			tx.Status = entity.TransactionAccepted
			if decision.Action == entity.ActionReject {
				tx.Status = entity.TransactionRejected
			}
			return tx, nil
		}
	}
	return nil, entity.NewNotFoundError("transaction", "x")
}

func (m *memoryBackend) CreateTransaction(ctx context.Context, payload *entity.NewTransaction) (*entity.BatchTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	tx := &entity.BatchTransaction{ID: m.nextID, BatchNumber: payload.BatchNumber, Status: entity.TransactionPending}
	for i, it := range payload.Items {
		tx.Items = append(tx.Items, &entity.TransactionItem{
			ID:                int64(i + 1),
			ItemTypeID:        it.ItemTypeID,
			RequestedQuantity: it.RequestedQuantity,
			MeasuringUnit:     it.MeasuringUnit,
		})
	}
	m.txs[tx.BatchNumber] = tx
	return tx, nil
}

type fakeExporter struct {
	calls int
}

func (f *fakeExporter) Export(ctx context.Context, scope worklog.Scope, m *worklog.Matrix) (string, []byte, error) {
	f.calls++
	return "exports/matrix.xlsx", []byte("xlsx"), nil
}
