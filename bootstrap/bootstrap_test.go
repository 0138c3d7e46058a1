package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/trustring/internal/logging"
	"xdao.co/trustring/keys"
	"xdao.co/trustring/model"
	"xdao.co/trustring/storage"
	"xdao.co/trustring/storage/memory"
	"xdao.co/trustring/truststore"
)

var (
	self     = model.Handle{'s', 'e', 'l', 'f', 0, 0, 0, 1}
	longTerm = model.RSAKey(bytes.Repeat([]byte{0xc3}, 64), []byte{1, 0, 1})
	fixedNow = time.Unix(1_700_000_000, 0)
)

// attrs is a Bound memory store that counts writes and can fail reads per slot.
type attrs struct {
	*storage.Bound

	mu      sync.Mutex
	writes  []string
	failGet map[string]error
}

func newAttrs(backend storage.Store) *attrs {
	return &attrs{Bound: storage.Bind(backend, self.String()), failGet: map[string]error{}}
}

func (a *attrs) GetAttribute(ctx context.Context, owner, slot string) ([]byte, error) {
	a.mu.Lock()
	err := a.failGet[slot]
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return a.Bound.GetAttribute(ctx, owner, slot)
}

func (a *attrs) SetAttribute(ctx context.Context, slot string, value []byte) error {
	a.mu.Lock()
	a.writes = append(a.writes, slot)
	a.mu.Unlock()
	return a.Bound.SetAttribute(ctx, slot, value)
}

func (a *attrs) written() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.writes...)
}

func (a *attrs) get(t *testing.T, slot string) []byte {
	t.Helper()
	b, err := a.Bound.GetAttribute(context.Background(), self.String(), slot)
	require.NoError(t, err)
	return b
}

func run(t *testing.T, a *attrs, passphrase string) (*Report, error) {
	t.Helper()
	c, err := New(Config{
		Handle:      self,
		Attributes:  a,
		LongTermKey: longTerm,
		Passphrase:  passphrase,
		Clock:       func() time.Time { return fixedNow },
		Logger:      logging.Discard(),
	})
	require.NoError(t, err)
	local, report, err := c.Run(context.Background())
	require.NotNil(t, report)
	if local != nil {
		t.Cleanup(func() { _ = local.Close() })
	}
	if err == nil {
		require.NotNil(t, local)
	}
	return report, err
}

func TestFirstRunBootstraps(t *testing.T) {
	a := newAttrs(memory.New())
	report, err := run(t, a, "")
	require.NoError(t, err)

	assert.Equal(t, StateBootstrapped, report.State)
	assert.False(t, report.Republished)
	assert.Nil(t, report.LoadErrors)
	require.NoError(t, report.LoadErr())

	seed := a.get(t, SlotSigningPrivate)
	require.Len(t, seed, ed25519.SeedSize)
	priv, err := keys.SigningKeyFromSeed(seed)
	require.NoError(t, err)
	pub := keys.PublicOf(priv)
	assert.Equal(t, []byte(pub), a.get(t, SlotSigningPublic))
	assert.Equal(t, pub, report.SigningPublicKey)

	ok, err := keys.VerifyKey(a.get(t, SlotSignature), longTerm, pub, fixedNow)
	require.NoError(t, err)
	assert.True(t, ok, "self-signature must verify")

	for _, kt := range model.KeyTypes() {
		assert.Empty(t, a.get(t, kt.Slot()))
	}
}

func TestSecondRunVerifiesWithoutWrites(t *testing.T) {
	backend := memory.New()
	first, err := run(t, newAttrs(backend), "")
	require.NoError(t, err)

	a := newAttrs(backend)
	report, err := run(t, a, "")
	require.NoError(t, err)

	assert.Equal(t, StateKeyVerified, report.State)
	assert.False(t, report.Republished)
	assert.Empty(t, a.written())
	assert.Equal(t, first.SigningPublicKey, report.SigningPublicKey)
	assert.Nil(t, report.LoadErrors)
}

func TestMismatchedPublishedKeyIsRepublished(t *testing.T) {
	backend := memory.New()
	first, err := run(t, newAttrs(backend), "")
	require.NoError(t, err)

	a := newAttrs(backend)
	require.NoError(t, a.Bound.SetAttribute(context.Background(), SlotSigningPublic, bytes.Repeat([]byte{1}, 32)))

	report, err := run(t, a, "")
	require.NoError(t, err)
	assert.Equal(t, StateKeyVerified, report.State)
	assert.True(t, report.Republished)
	assert.Equal(t, []string{SlotSigningPublic}, a.written())
	assert.Equal(t, []byte(first.SigningPublicKey), a.get(t, SlotSigningPublic))
}

func TestMissingPublishedKeyIsRepublished(t *testing.T) {
	backend := memory.New()
	_, err := run(t, newAttrs(backend), "")
	require.NoError(t, err)

	a := newAttrs(backend)
	a.failGet[SlotSigningPublic] = storage.ErrNotFound
	report, err := run(t, a, "")
	require.NoError(t, err)
	assert.True(t, report.Republished)
	assert.Equal(t, []string{SlotSigningPublic}, a.written())
}

func TestFetchFailureIsTerminal(t *testing.T) {
	a := newAttrs(memory.New())
	boom := errors.New("attribute service unavailable")
	a.failGet[SlotSigningPrivate] = boom

	report, err := run(t, a, "")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, a.written(), "failed bootstrap must not write")
}

func TestUndecodableKeyFails(t *testing.T) {
	a := newAttrs(memory.New())
	require.NoError(t, a.Bound.SetAttribute(context.Background(), SlotSigningPrivate, []byte{1, 2, 3}))

	report, err := run(t, a, "")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindInvalidInput), "got %v", err)
	assert.Equal(t, StateFailed, report.State)
}

func TestPartialLoadFailureIsReportedPerKeyType(t *testing.T) {
	backend := memory.New()
	_, err := run(t, newAttrs(backend), "")
	require.NoError(t, err)

	a := newAttrs(backend)
	require.NoError(t, a.Bound.SetAttribute(context.Background(), model.KeyTypeRSA.Slot(), []byte{1, 2, 3, 4, 5}))

	c, err := New(Config{Handle: self, Attributes: a, LongTermKey: longTerm, Clock: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	local, report, err := c.Run(context.Background())
	require.NoError(t, err)
	defer local.Close()

	assert.Equal(t, StateKeyVerified, report.State)
	require.Len(t, report.LoadErrors, 1)
	assert.True(t, model.IsKind(report.LoadErrors[model.KeyTypeRSA], model.KindMalformedRecord))
	assert.Error(t, report.LoadErr())

	assert.True(t, local.Trust().Loaded(model.KeyTypeEd25519))
	assert.False(t, local.Trust().Loaded(model.KeyTypeRSA))
}

func TestPassphraseSealsSigningKey(t *testing.T) {
	backend := memory.New()
	a := newAttrs(backend)
	first, err := run(t, a, "correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, ed25519.SeedSize, len(a.get(t, SlotSigningPrivate)), "seed must not be stored raw")

	report, err := run(t, newAttrs(backend), "correct horse")
	require.NoError(t, err)
	assert.Equal(t, StateKeyVerified, report.State)
	assert.Equal(t, first.SigningPublicKey, report.SigningPublicKey)

	report, err = run(t, newAttrs(backend), "wrong")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindCrypto), "got %v", err)
	assert.Equal(t, StateFailed, report.State)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Handle: self, LongTermKey: longTerm})
	assert.Error(t, err)

	_, err = New(Config{Handle: self, Attributes: newAttrs(memory.New()), LongTermKey: model.KeyMaterial{}})
	assert.True(t, model.IsKind(err, model.KindUnsupportedKeyType), "got %v", err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "bootstrapped", StateBootstrapped.String())
	assert.Equal(t, "State(9)", State(9).String())
}

// sharingAttrs keeps the caller's slices and hands its own buffers back.
type sharingAttrs struct {
	mu     sync.Mutex
	owner  string
	slots  map[string][]byte
	writes int
}

func newSharingAttrs() *sharingAttrs {
	return &sharingAttrs{owner: self.String(), slots: map[string][]byte{}}
}

func (s *sharingAttrs) GetAttribute(_ context.Context, owner, slot string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.slots[owner+"/"+slot]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (s *sharingAttrs) SetAttribute(_ context.Context, slot string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[s.owner+"/"+slot] = value
	s.writes++
	return nil
}

func TestStoredKeySurvivesHostThatSharesBuffers(t *testing.T) {
	for _, passphrase := range []string{"", "correct horse"} {
		t.Run("passphrase="+passphrase, func(t *testing.T) {
			a := newSharingAttrs()
			first := runWith(t, a, passphrase)
			require.Equal(t, StateBootstrapped, first.State)

			stored := a.slots[a.owner+"/"+SlotSigningPrivate]
			assert.NotEqual(t, make([]byte, len(stored)), stored, "stored private key was zeroed")

			writes := a.writes
			second := runWith(t, a, passphrase)
			assert.Equal(t, StateKeyVerified, second.State)
			assert.False(t, second.Republished)
			assert.Equal(t, first.SigningPublicKey, second.SigningPublicKey)
			assert.Equal(t, writes, a.writes, "second run must not write")
			assert.Equal(t, stored, a.slots[a.owner+"/"+SlotSigningPrivate])
		})
	}
}

func runWith(t *testing.T, a truststore.Attributes, passphrase string) *Report {
	t.Helper()
	c, err := New(Config{
		Handle:      self,
		Attributes:  a,
		LongTermKey: longTerm,
		Passphrase:  passphrase,
		Clock:       func() time.Time { return fixedNow },
		Logger:      logging.Discard(),
	})
	require.NoError(t, err)
	local, report, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, local.Close())
	return report
}
