package storage

import (
	"context"
	"errors"
)

// MultiStore provides deterministic, ordered fallback across multiple backends.
//
// Reads try Adapters in slice order and return the first hit. Set writes only
// to the first adapter.
type MultiStore struct {
	Adapters []Store
}

var _ Store = MultiStore{}

func (m MultiStore) Set(ctx context.Context, owner, slot string, value []byte) error {
	if len(m.Adapters) == 0 {
		return errors.New("storage: MultiStore has no adapters")
	}
	return m.Adapters[0].Set(ctx, owner, slot, value)
}

func (m MultiStore) Get(ctx context.Context, owner, slot string) ([]byte, error) {
	for _, s := range m.Adapters {
		b, err := s.Get(ctx, owner, slot)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}
