package store

import (
	"context"
	"sync"

	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"
)

// MockGateway is an in-memory Gateway for testing.
type MockGateway struct {
	mu           sync.Mutex
	Transactions []models.Transaction
	// Applied records successful updates by transaction ID.
	Applied map[string]string

	// Error injection
	FetchError  error
	ApplyErrors map[string]error
}

// NewMockGateway returns a mock serving txs.
func NewMockGateway(txs ...models.Transaction) *MockGateway {
	return &MockGateway{
		Transactions: txs,
		Applied:      make(map[string]string),
		ApplyErrors:  make(map[string]error),
	}
}

// FetchUncategorized filters the mock transactions like the SQLite store
// does, hidden rows excluded.
func (m *MockGateway) FetchUncategorized(_ context.Context, filter models.BatchFilter) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchError != nil {
		return nil, &pipelineerror.StoreAccessError{Op: "fetch uncategorized", Err: m.FetchError}
	}

	wanted := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}

	var out []models.Transaction
	for _, tx := range m.Transactions {
		if !tx.IsUncategorized() || tx.Hidden {
			continue
		}
		if filter.ByIDs() {
			if !wanted[tx.ID] {
				continue
			}
		} else if tx.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// ApplyCategory records the update, honoring the uncategorized guard.
func (m *MockGateway) ApplyCategory(_ context.Context, id, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ApplyErrors[id]; err != nil {
		return &pipelineerror.StoreUpdateError{TransactionID: id, Err: err}
	}
	for i := range m.Transactions {
		if m.Transactions[i].ID != id {
			continue
		}
		if !m.Transactions[i].IsUncategorized() {
			break
		}
		m.Transactions[i].Category = label
		m.Applied[id] = label
		return nil
	}
	return &pipelineerror.StoreUpdateError{TransactionID: id, Err: pipelineerror.ErrNotEligible}
}

// AppliedCount returns how many updates succeeded.
func (m *MockGateway) AppliedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Applied)
}
