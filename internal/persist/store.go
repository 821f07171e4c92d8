package persist

import (
	"context"
	"sync"
)

// Store keeps one serialized document per tenant collection.
type Store interface {
	// Load returns the stored bytes and whether the key exists.
	Load(ctx context.Context, tenantID, key string) ([]byte, bool, error)
	Save(ctx context.Context, tenantID, key string, data []byte) error
	// SaveBatch writes every entry or none of them.
	SaveBatch(ctx context.Context, tenantID string, batch map[string][]byte) error
}

// Locker guards a tenant across processes.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, tenantID, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[tenantID][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *Memory) Save(ctx context.Context, tenantID, key string, data []byte) error {
	return m.SaveBatch(ctx, tenantID, map[string][]byte{key: data})
}

func (m *Memory) SaveBatch(_ context.Context, tenantID string, batch map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	collections, ok := m.data[tenantID]
	if !ok {
		collections = make(map[string][]byte, len(batch))
		m.data[tenantID] = collections
	}
	for key, data := range batch {
		collections[key] = append([]byte(nil), data...)
	}
	return nil
}
