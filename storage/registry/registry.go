// Package registry links attribute-store backends into a binary.
//
// Each backend package calls MustRegister from init. A binary enables a
// backend by importing its package (usually as a blank import) and selects
// one at run time by name, with options taken either from command-line
// flags or from a storeconfig file. Flag names and config keys are the same
// strings, prefixed with the backend name ("localfs-dir", "sqlite-dsn").
package registry

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"
	"sync"

	"xdao.co/trustring/storage"
)

var (
	// ErrUnknownBackend is returned when no backend with the requested name
	// was linked into the binary.
	ErrUnknownBackend = errors.New("registry: unknown attribute backend")
	// ErrWrongUsage is returned when a backend exists but is not offered to
	// the calling program.
	ErrWrongUsage = errors.New("registry: attribute backend not offered here")
)

// OpenFunc constructs an attribute store. The close function may be nil.
type OpenFunc func() (storage.Store, func() error, error)

// Backend describes one attribute-store implementation.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds the backend's options to fs. Called at most once
	// per flag set.
	RegisterFlags func(fs *flag.FlagSet)

	// Open builds the store from the flags registered above.
	Open OpenFunc

	// OpenWithConfig builds the store from a map keyed by flag name, as found
	// under a backend entry of a storeconfig file.
	OpenWithConfig func(cfg map[string]string) (storage.Store, func() error, error)
}

func (b Backend) validate() error {
	if b.Name == "" {
		return errors.New("registry: attribute backend has no name")
	}
	var missing []string
	if b.RegisterFlags == nil {
		missing = append(missing, "RegisterFlags")
	}
	if b.Open == nil {
		missing = append(missing, "Open")
	}
	if b.OpenWithConfig == nil {
		missing = append(missing, "OpenWithConfig")
	}
	if b.Usage == 0 {
		missing = append(missing, "Usage")
	}
	if len(missing) > 0 {
		return fmt.Errorf("registry: attribute backend %q is missing %s", b.Name, strings.Join(missing, ", "))
	}
	return nil
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds b to the set of linked backends. Names are unique.
func Register(b Backend) error {
	if err := b.validate(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := backends[b.Name]; dup {
		return fmt.Errorf("registry: attribute backend %q registered twice", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns the backends offered to usage, ordered by name.
func List(usage Usage) []Backend {
	mu.RLock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	mu.RUnlock()
	slices.SortFunc(out, func(a, b Backend) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names is List reduced to backend names.
func Names(usage Usage) []string {
	var names []string
	for _, b := range List(usage) {
		names = append(names, b.Name)
	}
	return names
}

// RegisterFlags adds the options of every backend offered to usage, so a
// single fs.Parse accepts whichever backend is selected later.
func RegisterFlags(fs *flag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

func lookup(name string, usage Usage) (Backend, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	switch {
	case !ok:
		return Backend{}, fmt.Errorf("%w: %q (linked: %s)", ErrUnknownBackend, name, strings.Join(Names(usage), ", "))
	case !b.Usage.allows(usage):
		return Backend{}, fmt.Errorf("%w: %q", ErrWrongUsage, name)
	}
	return b, nil
}

// Open opens the named backend from its parsed flags.
func Open(name string, usage Usage) (storage.Store, func() error, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	s, closeFn, err := b.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("registry: open %s: %w", name, err)
	}
	return s, closeFn, nil
}

// OpenWithConfig opens the named backend from cfg. A nil cfg is treated as
// empty.
func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.Store, func() error, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil {
		cfg = map[string]string{}
	}
	s, closeFn, err := b.OpenWithConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("registry: open %s: %w", name, err)
	}
	return s, closeFn, nil
}
