package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory Store used in tests and local development.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Put stores a copy of data at key, replacing any existing value
func (m *MemStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = buf
	return nil
}

// Get returns a copy of the data at key, or ErrKeyNotFound
func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// List returns all keys with the given prefix in lexicographic order
func (m *MemStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the key. Missing keys are a no-op.
func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// Len reports the number of stored objects
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Store = (*MemStore)(nil)
