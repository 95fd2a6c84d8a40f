package store

import (
	"context"
	"sort"
	"sync"

	"conto/internal/core"
)

// MemoryRepository is a Repository kept in process memory.
type MemoryRepository struct {
	mu   sync.Mutex
	txs  map[string]core.Transaction
	seq  map[string]int
	next int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		txs: make(map[string]core.Transaction),
		seq: make(map[string]int),
	}
}

// ListTransactions returns transactions ordered by date, then insertion.
func (m *MemoryRepository) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.Transaction, 0, len(m.txs))
	for _, t := range m.txs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryRepository) InsertTransactions(_ context.Context, txs []core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txs {
		if _, ok := m.seq[t.ID]; !ok {
			m.seq[t.ID] = m.next
			m.next++
		}
		m.txs[t.ID] = t
	}
	return nil
}

func (m *MemoryRepository) UpdateTransactionCategory(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.txs[t.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Category = t.Category
	cur.IsClassified = t.IsClassified
	cur.AutoAppliedRule = t.AutoAppliedRule
	cur.UpdatedAt = t.UpdatedAt
	m.txs[t.ID] = cur
	return nil
}

func (m *MemoryRepository) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, id)
	delete(m.seq, id)
	return nil
}
