// Package memory is an in-process attribute store. It is useful for tests and
// for running the attribute daemon without persistence.
package memory

import (
	"context"
	"sync"

	"xdao.co/trustring/storage"
)

type key struct{ owner, slot string }

// Store keeps attributes in a map guarded by a mutex.
type Store struct {
	mu   sync.RWMutex
	data map[key][]byte
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: map[key][]byte{}}
}

func (s *Store) Get(ctx context.Context, owner, slot string) ([]byte, error) {
	if err := checkNames(owner, slot); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key{owner, slot}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte{}, v...), nil
}

func (s *Store) Set(ctx context.Context, owner, slot string, value []byte) error {
	if err := checkNames(owner, slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key{owner, slot}] = append([]byte{}, value...)
	return nil
}

func checkNames(owner, slot string) error {
	if err := storage.CheckName(owner); err != nil {
		return err
	}
	return storage.CheckName(slot)
}
