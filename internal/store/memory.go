package store

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory creates a process-local Store
func NewMemory() Store {
	return &memoryStore{items: make(map[string][]byte)}
}

func (s *memoryStore) Save(ctx context.Context, id string, data []byte) error {
	cp := append([]byte(nil), data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = cp
	return nil
}

func (s *memoryStore) Load(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
