package stubs

import (
	"context"
	"sync"

	"shopbot/internal/storage"
)

// MockDB is an in-memory implementation of storage.Backend for testing.
type MockDB struct {
	mu          sync.RWMutex
	collections map[string][]storage.Row
	counters    map[string]int64
	failWith    error
}

// NewMockDB creates a new mock backend.
func NewMockDB() *MockDB {
	return &MockDB{
		collections: make(map[string][]storage.Row),
		counters:    make(map[string]int64),
	}
}

// FailWith makes every subsequent operation return err. Pass nil to
// restore normal behavior.
func (m *MockDB) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Initialize does nothing for the mock backend.
func (m *MockDB) Initialize(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failWith
}

// LoadRows returns a copy of the collection's rows in stored order.
func (m *MockDB) LoadRows(ctx context.Context, collection string) ([]storage.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	rows := make([]storage.Row, len(m.collections[collection]))
	copy(rows, m.collections[collection])
	return rows, nil
}

// UpsertRows merges rows into the collection, last writer wins per key.
func (m *MockDB) UpsertRows(ctx context.Context, collection string, rows []storage.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}

	existing := m.collections[collection]
	for _, r := range rows {
		found := false
		for i := range existing {
			if existing[i].Key == r.Key {
				existing[i].Data = append([]byte(nil), r.Data...)
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, storage.Row{Key: r.Key, Data: append([]byte(nil), r.Data...)})
		}
	}
	m.collections[collection] = existing
	return nil
}

// ReplaceRows replaces the collection contents with the given rows.
func (m *MockDB) ReplaceRows(ctx context.Context, collection string, rows []storage.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}

	replaced := make([]storage.Row, 0, len(rows))
	for _, r := range rows {
		replaced = append(replaced, storage.Row{Key: r.Key, Data: append([]byte(nil), r.Data...)})
	}
	m.collections[collection] = replaced
	return nil
}

// LoadCounter returns the named counter, or def if never saved.
func (m *MockDB) LoadCounter(ctx context.Context, name string, def int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return 0, m.failWith
	}

	if v, ok := m.counters[name]; ok {
		return v, nil
	}
	return def, nil
}

// SaveCounter upserts the named counter.
func (m *MockDB) SaveCounter(ctx context.Context, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}

	m.counters[name] = value
	return nil
}

// SeedRow injects a raw row directly into a collection, bypassing the
// backend interface. Tests use it to simulate pre-existing or corrupt
// durable data.
func (m *MockDB) SeedRow(collection, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection],
		storage.Row{Key: key, Data: append([]byte(nil), data...)})
}

// Close does nothing for the mock backend.
func (m *MockDB) Close() error {
	return nil
}
