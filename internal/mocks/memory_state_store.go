package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/you/chefkix/domain"
)

// MemoryStateStore implements domain.StateStore in memory, JSON-encoding like the real stores
type MemoryStateStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	SaveFunc func(ctx context.Context, key string, v interface{}) error
	saves    int
}

// NewMemoryStateStore creates an empty store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{data: make(map[string][]byte)}
}

// Load decodes the stored value for key
func (m *MemoryStateStore) Load(ctx context.Context, key string, v interface{}) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Save encodes v under key
func (m *MemoryStateStore) Save(ctx context.Context, key string, v interface{}) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, key, v); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	m.saves++
	return nil
}

// Delete removes key
func (m *MemoryStateStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// SaveCount returns how many successful saves happened
func (m *MemoryStateStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Has reports whether key is stored
func (m *MemoryStateStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// Raw returns the stored JSON for key
func (m *MemoryStateStore) Raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data[key])
}

// Compile-time interface compliance verification
var _ domain.StateStore = (*MemoryStateStore)(nil)
