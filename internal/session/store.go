package session

import (
	"context"
	"sync"
)

// storageKeySuffix completes the namespaced persistence key: "<prefix>-session".
const storageKeySuffix = "-session"

// Store is the persistence boundary for the serialized session (the
// local-storage analog). Implementations hold exactly one value under a
// namespaced key; external code must not write to that key directly.
type Store interface {
	// Load returns the stored session bytes, or (nil, nil) when absent.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored session bytes. Last writer wins.
	Save(ctx context.Context, data []byte) error
	// Clear removes the stored value. Clearing an absent value is a no-op.
	Clear(ctx context.Context) error
}

// MemoryStore is an in-memory Store. A single MemoryStore shared between
// managers behaves like one origin's storage shared between tabs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	key  string
}

// NewMemoryStore returns a MemoryStore namespaced under prefix.
func NewMemoryStore(prefix string) *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
		key:  prefix + storageKeySuffix,
	}
}

// Load returns the stored bytes or (nil, nil) when absent.
func (s *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[s.key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Save replaces the stored bytes.
func (s *MemoryStore) Save(ctx context.Context, data []byte) error {
	b := make([]byte, len(data))
	copy(b, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.key] = b
	return nil
}

// Clear removes the stored value.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, s.key)
	return nil
}
