package storage

import (
	"context"
	"sync"

	"github.com/project-89/Quantum-Veil/internal/shifter"
)

// MemoryStore keeps encoded fragments in process memory. Useful for
// tests and as a stand-in primary when no durable backend is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Store(_ context.Context, f *shifter.Fragment) (string, error) {
	b, err := encodeFragment(f)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.blobs[f.ID] = b
	m.mu.Unlock()
	return "mem://" + f.ID, nil
}

func (m *MemoryStore) Retrieve(_ context.Context, id string) (*shifter.Fragment, error) {
	m.mu.RLock()
	b, ok := m.blobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeFragment(b)
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[id]
	return ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, id)
	return nil
}

// Len reports how many fragments the store holds.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
