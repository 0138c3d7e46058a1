// Package storage defines the external attribute store that trust rings and
// identity keys are persisted in, plus composition helpers over backends.
//
// Contract:
//   - Attributes are opaque byte strings addressed by (owner, slot).
//   - Set replaces any previous value; the last writer wins.
//   - Get MUST return ErrNotFound when the attribute is absent. A present but
//     empty attribute is returned as an empty slice, not ErrNotFound.
//   - Owner and slot names are checked with CheckName.
package storage

import (
	"context"
	"fmt"
)

// Store is a multi-owner attribute backend.
type Store interface {
	Get(ctx context.Context, owner, slot string) ([]byte, error)
	Set(ctx context.Context, owner, slot string, value []byte) error
}

// CheckName validates an owner or slot name: non-empty, at most 128 bytes of
// [A-Za-z0-9._-], and not "." or "..".
func CheckName(name string) error {
	if name == "" || len(name) > 128 || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' || char == '.' {
			continue
		}
		return fmt.Errorf("%w: invalid character %q in %q", ErrInvalidName, char, name)
	}
	return nil
}

// Bound scopes a Store to the local owner. Reads may address any owner;
// writes always go to Owner.
type Bound struct {
	Store Store
	Owner string
}

// Bind returns a Bound view of s for owner.
func Bind(s Store, owner string) *Bound {
	return &Bound{Store: s, Owner: owner}
}

func (b *Bound) GetAttribute(ctx context.Context, owner, slot string) ([]byte, error) {
	return b.Store.Get(ctx, owner, slot)
}

func (b *Bound) SetAttribute(ctx context.Context, slot string, value []byte) error {
	return b.Store.Set(ctx, b.Owner, slot, value)
}
