package rules

import (
	"context"
	"sync"
)

// MemoryStore is a RuleStore kept in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	merchant map[string]Rule
	card     map[string]Rule
	usage    map[usageKey]Usage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		merchant: make(map[string]Rule),
		card:     make(map[string]Rule),
		usage:    make(map[usageKey]Usage),
	}
}

func (m *MemoryStore) LoadRules(_ context.Context) ([]Rule, []Rule, []Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merchant := make([]Rule, 0, len(m.merchant))
	for _, r := range m.merchant {
		merchant = append(merchant, r)
	}
	card := make([]Rule, 0, len(m.card))
	for _, r := range m.card {
		card = append(card, r)
	}
	usage := make([]Usage, 0, len(m.usage))
	for _, u := range m.usage {
		usage = append(usage, u)
	}
	return merchant, card, usage, nil
}

func (m *MemoryStore) SaveMerchantRule(_ context.Context, r Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merchant[r.Key] = r
	return nil
}

func (m *MemoryStore) DeleteMerchantRule(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.merchant, key)
	return nil
}

func (m *MemoryStore) SaveCardRule(_ context.Context, r Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.card[r.Key] = r
	return nil
}

func (m *MemoryStore) DeleteCardRule(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.card, key)
	return nil
}

func (m *MemoryStore) SaveUsage(_ context.Context, u Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[usageKey{u.Merchant, u.Category}] = u
	return nil
}
