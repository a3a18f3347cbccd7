package keyvalue

import (
	"context"
	"strings"
	"sync"
)

// Store define el contrato de persistencia local clave-valor.
// Una clave ausente se reporta con false, nunca como error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type memoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMemoryStore crea un store en memoria, pensado para tests y defaults.
func NewMemoryStore() Store {
	return &memoryStore{items: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.items[strings.TrimSpace(key)]
	return value, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.items[key] = value
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, strings.TrimSpace(key))
	return nil
}
