package storage

import (
	"context"
	"sync"

	"github.com/hexquarry/battle/types"
)

// MemoryStore is an in-process Store, used for tests and for running the
// generation pipeline without an S3 bucket configured.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]*types.JobResult
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]*types.JobResult)}
}

// Put stores result under fingerprint.
func (m *MemoryStore) Put(_ context.Context, fingerprint string, result *types.JobResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[fingerprint] = result
	return nil
}

// Get retrieves the result stored under fingerprint.
func (m *MemoryStore) Get(_ context.Context, fingerprint string) (*types.JobResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.results[fingerprint]
	if !ok {
		return nil, NewError(ErrNotFound, "read", fingerprint, ErrNotFound)
	}
	return result, nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
