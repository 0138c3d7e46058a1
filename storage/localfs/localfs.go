package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"xdao.co/trustring/storage"
)

// Store is a local filesystem-backed attribute store.
//
// Each attribute lives in its own file at <root>/<owner>/<slot>. Writes go to
// a temporary file in the same directory and are renamed into place, so a
// reader sees either the old or the new value.
type Store struct {
	root string
}

var _ storage.Store = (*Store)(nil)

// New constructs a filesystem store rooted at root. The directory will be created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Set(ctx context.Context, owner, slot string, value []byte) error {
	path, err := s.pathFor(owner, slot)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+slot+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	if _, err := f.Write(value); err != nil {
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("localfs: rename into place: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, owner, slot string) ([]byte, error) {
	path, err := s.pathFor(owner, slot)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

func (s *Store) pathFor(owner, slot string) (string, error) {
	if err := storage.CheckName(owner); err != nil {
		return "", err
	}
	if err := storage.CheckName(slot); err != nil {
		return "", err
	}
	return filepath.Join(s.root, owner, slot), nil
}
