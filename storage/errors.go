package storage

import "errors"

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidName = errors.New("storage: invalid owner or slot name")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
