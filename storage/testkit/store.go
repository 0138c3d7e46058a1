package testkit

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"xdao.co/trustring/storage"
)

// NewStore constructs a fresh, empty Store instance for a test.
// The returned Store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

// RunStoreConformance exercises the storage.Store contract.
func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, trust ring")
		if err := s.Set(ctx, "alice", "trust.ed25519", want); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := s.Get(ctx, "alice", "trust.ed25519")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch: %q", got)
		}
	})

	t.Run("LastWriterWins", func(t *testing.T) {
		s := newStore(t)
		for _, v := range []string{"one", "two", "three"} {
			if err := s.Set(ctx, "alice", "slot", []byte(v)); err != nil {
				t.Fatalf("Set(%s) failed: %v", v, err)
			}
		}
		got, err := s.Get(ctx, "alice", "slot")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "three" {
			t.Fatalf("got %q want three", got)
		}
	})

	t.Run("EmptyValueIsNotMissing", func(t *testing.T) {
		s := newStore(t)
		if err := s.Set(ctx, "alice", "trust.rsa", []byte{}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := s.Get(ctx, "alice", "trust.rsa")
		if err != nil {
			t.Fatalf("Get of empty attribute: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty value, got %q", got)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "alice", "missing")
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}
	})

	t.Run("OwnersAreIsolated", func(t *testing.T) {
		s := newStore(t)
		if err := s.Set(ctx, "alice", "slot", []byte("a")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := s.Get(ctx, "bob", "slot"); !storage.IsNotFound(err) {
			t.Fatalf("other owner: got err=%v want ErrNotFound", err)
		}
	})

	t.Run("RejectInvalidNames", func(t *testing.T) {
		s := newStore(t)
		for _, name := range []string{"", "..", "a/b", "a b"} {
			if err := s.Set(ctx, name, "slot", []byte("x")); !errors.Is(err, storage.ErrInvalidName) {
				t.Fatalf("Set owner %q: got %v want ErrInvalidName", name, err)
			}
			if _, err := s.Get(ctx, "alice", name); !errors.Is(err, storage.ErrInvalidName) {
				t.Fatalf("Get slot %q: got %v want ErrInvalidName", name, err)
			}
		}
	})

	t.Run("ReturnedBytesAreCopies", func(t *testing.T) {
		s := newStore(t)
		in := []byte("abc")
		if err := s.Set(ctx, "alice", "slot", in); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		in[0] = 'z'
		got, err := s.Get(ctx, "alice", "slot")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "abc" {
			t.Fatalf("store aliases caller buffer: %q", got)
		}
	})
}
