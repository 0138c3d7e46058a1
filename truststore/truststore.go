// Package truststore keeps the per-key-type trust rings of the local identity
// and persists them through an external attribute store.
//
// Each key type has its own ring and its own storage slot (model.KeyType.Slot).
// A ring must be loaded (or scrubbed) before records can be read or written.
package truststore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/trustring/cidutil"
	"xdao.co/trustring/codec"
	"xdao.co/trustring/metrics"
	"xdao.co/trustring/model"
)

// Attributes is the host's per-user key/value store. storage.Bind adapts any
// storage.Store to it.
//
// Slices cross the boundary without a transfer of ownership: a host may keep
// the value passed to SetAttribute and may return its own buffer from
// GetAttribute, so callers never mutate either.
type Attributes interface {
	GetAttribute(ctx context.Context, owner, slot string) ([]byte, error)
	SetAttribute(ctx context.Context, slot string, value []byte) error
}

type ring struct {
	records  model.Collection
	revision cid.Cid
	// gen counts local mutations; Load discards a fetch that raced one.
	gen uint64
	// saveMu serializes writes for this key type.
	saveMu sync.Mutex
}

// Store holds the trust rings for one local identity.
type Store struct {
	attrs   Attributes
	self    model.Handle
	owner   string
	log     *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	rings map[model.KeyType]*ring
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New returns a Store with no rings loaded. Rings are read from the owner
// named by self's text form.
func New(attrs Attributes, self model.Handle, opts ...Option) *Store {
	s := &Store{
		attrs: attrs,
		self:  self,
		owner: self.String(),
		log:   slog.Default(),
		rings: make(map[model.KeyType]*ring, len(model.KeyTypes())),
	}
	for _, kt := range model.KeyTypes() {
		s.rings[kt] = &ring{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Self returns the local identity handle.
func (s *Store) Self() model.Handle { return s.self }

// Load fetches and decodes the ring for kt and makes it the live ring.
// A fetch or decode failure is returned and leaves the cached ring untouched.
func (s *Store) Load(ctx context.Context, kt model.KeyType) (model.Collection, error) {
	r, err := s.ring(kt)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	gen := r.gen
	s.mu.Unlock()

	blob, err := s.attrs.GetAttribute(ctx, s.owner, kt.Slot())
	if err != nil {
		return nil, fmt.Errorf("truststore: load %s: %w", kt, err)
	}
	c, err := codec.Deserialize(blob)
	if err != nil {
		return nil, err
	}
	rev, err := cidutil.Revision(blob)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r.gen != gen && r.records != nil {
		s.log.DebugContext(ctx, "trust ring changed during load; keeping local state", "key_type", kt.String())
		return r.records.Clone(), nil
	}
	r.records = c
	r.revision = rev
	s.log.DebugContext(ctx, "trust ring loaded", "key_type", kt.String(), "records", len(c), "revision", rev.String())
	return c.Clone(), nil
}

// Save writes the live ring for kt back to the attribute store.
func (s *Store) Save(ctx context.Context, kt model.KeyType) error {
	r, err := s.ring(kt)
	if err != nil {
		return err
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	s.mu.Lock()
	if r.records == nil {
		s.mu.Unlock()
		return uninitialized(kt)
	}
	blob, err := codec.Serialize(r.records)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	err = s.attrs.SetAttribute(ctx, kt.Slot(), blob)
	s.metrics.Saved(kt.String(), err)
	if err != nil {
		return fmt.Errorf("truststore: save %s: %w", kt, err)
	}

	rev, err := cidutil.Revision(blob)
	if err != nil {
		return err
	}
	s.mu.Lock()
	r.revision = rev
	s.mu.Unlock()
	s.log.DebugContext(ctx, "trust ring saved", "key_type", kt.String(), "bytes", len(blob), "revision", rev.String())
	return nil
}

// Record returns the record for handle. The boolean is false when there is no
// record; that is not an error.
func (s *Store) Record(handle model.Handle, kt model.KeyType) (model.Record, bool, error) {
	r, err := s.ring(kt)
	if err != nil {
		return model.Record{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.records == nil {
		return model.Record{}, false, uninitialized(kt)
	}
	rec, ok := r.records[handle]
	return rec, ok, nil
}

// SetRecord upserts the record for handle and persists the ring.
//
// Records for the local identity's own handle are refused: the call logs a
// warning and returns nil without touching the ring or the attribute store.
func (s *Store) SetRecord(ctx context.Context, handle model.Handle, fingerprint []byte, kt model.KeyType, method model.Method, confidence model.Confidence) error {
	r, err := s.ring(kt)
	if err != nil {
		return err
	}
	if handle == s.self {
		s.log.WarnContext(ctx, "refusing to record trust for own identity", "handle", handle.String(), "key_type", kt.String())
		s.metrics.SelfRejected()
		return nil
	}
	fp, err := model.ParseFingerprint(fingerprint)
	if err != nil {
		return err
	}
	if _, err := model.PackTrust(confidence, method); err != nil {
		return err
	}

	s.mu.Lock()
	if r.records == nil {
		s.mu.Unlock()
		return uninitialized(kt)
	}
	r.records[handle] = model.Record{Handle: handle, Fingerprint: fp, Method: method, Confidence: confidence}
	r.gen++
	s.mu.Unlock()

	s.metrics.RecordUpdated(kt.String(), method.String())
	return s.Save(ctx, kt)
}

// Scrub discards every record for kt and persists the empty ring. It also
// initializes a ring that was never loaded.
func (s *Store) Scrub(ctx context.Context, kt model.KeyType) error {
	r, err := s.ring(kt)
	if err != nil {
		return err
	}
	s.mu.Lock()
	r.records = model.Collection{}
	r.gen++
	s.mu.Unlock()

	s.log.InfoContext(ctx, "trust ring scrubbed", "key_type", kt.String())
	return s.Save(ctx, kt)
}

// Records returns a copy of the live ring for kt.
func (s *Store) Records(kt model.KeyType) (model.Collection, error) {
	r, err := s.ring(kt)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.records == nil {
		return nil, uninitialized(kt)
	}
	return r.records.Clone(), nil
}

// Loaded reports whether the ring for kt is initialized.
func (s *Store) Loaded(kt model.KeyType) bool {
	r, err := s.ring(kt)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.records != nil
}

// Revision returns the content id of the blob last loaded or saved for kt.
func (s *Store) Revision(kt model.KeyType) (cid.Cid, bool) {
	r, err := s.ring(kt)
	if err != nil {
		return cid.Undef, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.revision, r.revision.Defined()
}

func (s *Store) ring(kt model.KeyType) (*ring, error) {
	if err := kt.Check(); err != nil {
		return nil, err
	}
	return s.rings[kt], nil
}

func uninitialized(kt model.KeyType) error {
	return model.NewError(model.KindUninitializedStore, "TRUST-STORE-001", fmt.Sprintf("trust ring %s not loaded", kt))
}
