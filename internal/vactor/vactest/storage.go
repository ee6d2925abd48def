package vactest

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory vactor.StorageProvider test double.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func key(interfaceID, actorID string) string {
	return interfaceID + "/" + actorID
}

// LoadState implements vactor.StorageProvider.
func (s *MemoryStorage) LoadState(ctx context.Context, interfaceID,
	actorID string) ([]byte, bool, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.data[key(interfaceID, actorID)]
	return data, ok, nil
}

// SaveState implements vactor.StorageProvider.
func (s *MemoryStorage) SaveState(ctx context.Context, interfaceID,
	actorID string, data []byte, updatedAtUnixNano int64) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key(interfaceID, actorID)] = data
	return nil
}

// DeleteState implements vactor.StorageProvider.
func (s *MemoryStorage) DeleteState(ctx context.Context, interfaceID,
	actorID string) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key(interfaceID, actorID))
	return nil
}
