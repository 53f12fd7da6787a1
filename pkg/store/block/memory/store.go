// Package memory keeps shared-memory pages in a map. It is the default
// backend and the one used by tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/yxiaowhut/streamit/pkg/store/block"
)

// Store is an in-memory block.Store.
type Store struct {
	mu     sync.RWMutex
	blocks map[string][]byte
	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{blocks: make(map[string][]byte)}
}

func (s *Store) WriteBlock(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return block.ErrStoreClosed
	}
	s.blocks[key] = slices.Clone(data)
	return nil
}

func (s *Store) ReadBlock(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, block.ErrStoreClosed
	}
	data, ok := s.blocks[key]
	if !ok {
		return nil, block.ErrBlockNotFound
	}
	return slices.Clone(data), nil
}

func (s *Store) DeleteBlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return block.ErrStoreClosed
	}
	delete(s.blocks, key)
	return nil
}

func (s *Store) DeleteByPrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return block.ErrStoreClosed
	}
	for key := range s.blocks {
		if strings.HasPrefix(key, prefix) {
			delete(s.blocks, key)
		}
	}
	return nil
}

func (s *Store) ListByPrefix(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, block.ErrStoreClosed
	}
	var keys []string
	for key := range s.blocks {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Close drops all pages.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.blocks = nil
	return nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return block.ErrStoreClosed
	}
	return nil
}

// Len returns the number of stored pages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

var _ block.Store = (*Store)(nil)
