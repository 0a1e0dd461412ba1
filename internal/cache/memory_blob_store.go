package cache

import (
	"context"
	"sync"
)

// MemoryBlobStore keeps the blob in process memory. It survives nothing and
// exists for tests and for running without any durable backend.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	image []byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{}
}

func (m *MemoryBlobStore) Restore(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.image == nil {
		return nil, nil
	}
	return append([]byte(nil), m.image...), nil
}

func (m *MemoryBlobStore) Persist(_ context.Context, image []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.image = append([]byte(nil), image...)
	return nil
}
