package store

import (
	"context"
	"sync"

	"github.com/jeffbrin/SHFT/errors"
	"github.com/jeffbrin/SHFT/reading"
)

// MemoryStore is an in-memory DataStore used in tests and development
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]reading.Reading
	order []string

	// Counters for assertions
	adds    int
	updates int
	deletes int
	lists   int

	// FailWrites makes all mutating calls return an error
	FailWrites bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]reading.Reading)}
}

// Add stores a new item
func (s *MemoryStore) Add(_ context.Context, item reading.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errors.WrapTransient(errors.ErrStoreUnavailable, "MemoryStore", "Add", "store write")
	}

	s.adds++
	if _, exists := s.items[item.Key]; !exists {
		s.order = append(s.order, item.Key)
	}
	s.items[item.Key] = item
	return nil
}

// Update overwrites an existing item
func (s *MemoryStore) Update(_ context.Context, item reading.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errors.WrapTransient(errors.ErrStoreUnavailable, "MemoryStore", "Update", "store write")
	}

	if _, exists := s.items[item.Key]; !exists {
		return errors.WrapInvalid(errors.ErrKeyNotFound, "MemoryStore", "Update", "key "+item.Key)
	}

	s.updates++
	s.items[item.Key] = item
	return nil
}

// Delete removes an item by key
func (s *MemoryStore) Delete(_ context.Context, item reading.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites {
		return errors.WrapTransient(errors.ErrStoreUnavailable, "MemoryStore", "Delete", "store delete")
	}

	if _, exists := s.items[item.Key]; !exists {
		return errors.WrapInvalid(errors.ErrKeyNotFound, "MemoryStore", "Delete", "key "+item.Key)
	}

	s.deletes++
	delete(s.items, item.Key)
	for i, key := range s.order {
		if key == item.Key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns all items in insertion order
func (s *MemoryStore) List(_ context.Context, _ bool) ([]reading.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists++
	items := make([]reading.Reading, 0, len(s.order))
	for _, key := range s.order {
		items = append(items, s.items[key])
	}
	return items, nil
}

// Len returns the number of stored items
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// AddCount returns how many Add calls succeeded
func (s *MemoryStore) AddCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adds
}

// DeleteCount returns how many Delete calls succeeded
func (s *MemoryStore) DeleteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deletes
}

// UpdateCount returns how many Update calls succeeded
func (s *MemoryStore) UpdateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}
