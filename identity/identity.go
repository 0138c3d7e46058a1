// Package identity holds the unlocked state of the local identity: its
// handle, its attestation signing key, its long-term public key and its trust
// rings. A Local is built by the bootstrap controller and must be closed on
// logout so the private key is zeroized.
package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"

	"xdao.co/trustring/fingerprint"
	"xdao.co/trustring/keys"
	"xdao.co/trustring/metrics"
	"xdao.co/trustring/model"
	"xdao.co/trustring/truststore"
)

type Local struct {
	handle   model.Handle
	longTerm model.KeyMaterial
	trust    *truststore.Store
	now      func() time.Time
	metrics  *metrics.Metrics

	mu   sync.RWMutex
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

type Option func(*Local)

// WithClock overrides time.Now as the attestation clock.
func WithClock(now func() time.Time) Option {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Local) { l.metrics = m }
}

// New takes ownership of priv; Close wipes it.
func New(handle model.Handle, priv ed25519.PrivateKey, longTerm model.KeyMaterial, trust *truststore.Store, opts ...Option) (*Local, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-ID-001", fmt.Sprintf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv)))
	}
	if _, err := longTerm.Canonical(); err != nil {
		return nil, err
	}
	if trust == nil {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-ID-002", "trust store is required")
	}
	l := &Local{
		handle:   handle,
		longTerm: longTerm,
		trust:    trust,
		now:      time.Now,
		pub:      keys.PublicOf(priv),
		priv:     priv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Local) Handle() model.Handle { return l.handle }

func (l *Local) LongTermKey() model.KeyMaterial { return l.longTerm }

func (l *Local) Trust() *truststore.Store { return l.trust }

// SigningPublicKey returns a copy of the attestation verification key.
func (l *Local) SigningPublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), l.pub...)
}

// SignKey attests k with the local signing key at the current time.
func (l *Local) SignKey(k model.KeyMaterial) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.priv == nil {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-ID-003", "identity is closed")
	}
	return keys.SignKey(k, l.priv, l.now())
}

// SignLongTermKey attests the local long-term key.
func (l *Local) SignLongTermKey() ([]byte, error) {
	return l.SignKey(l.longTerm)
}

// VerifyKey checks an attestation of k by signer against the local clock.
func (l *Local) VerifyKey(envelope []byte, k model.KeyMaterial, signer ed25519.PublicKey) (bool, error) {
	ok, err := keys.VerifyKey(envelope, k, signer, l.now())
	l.metrics.Verified(ok, err)
	return ok, err
}

// AuthenticateBySignature verifies that signer attested k and, if so, records
// k's fingerprint for handle as signature-verified. The boolean reports the
// verification result.
func (l *Local) AuthenticateBySignature(ctx context.Context, handle model.Handle, k model.KeyMaterial, envelope []byte, signer ed25519.PublicKey) (bool, error) {
	ok, err := l.VerifyKey(envelope, k, signer)
	if err != nil || !ok {
		return false, err
	}
	fp, err := fingerprint.Compute(k)
	if err != nil {
		return false, err
	}
	if err := l.trust.SetRecord(ctx, handle, fp[:], k.Type, model.MethodSignatureVerified, model.ConfidenceUnsure); err != nil {
		return false, err
	}
	return true, nil
}

// AuthenticateByFingerprint compares a fingerprint obtained out of band (raw or
// hex) against k and records a match as fingerprint-comparison.
func (l *Local) AuthenticateByFingerprint(ctx context.Context, handle model.Handle, k model.KeyMaterial, claimed []byte) (bool, error) {
	fp, err := fingerprint.Compute(k)
	if err != nil {
		return false, err
	}
	equal, known := fingerprint.Equal(fp[:], claimed)
	if !known {
		return false, model.NewError(model.KindInvalidInput, "TRUST-ID-004", "claimed fingerprint is missing or not a fingerprint")
	}
	if !equal {
		return false, nil
	}
	if err := l.trust.SetRecord(ctx, handle, fp[:], k.Type, model.MethodFingerprintComparison, model.ConfidenceUnsure); err != nil {
		return false, err
	}
	return true, nil
}

// Seen records k for handle on first sight. An existing record for the same
// fingerprint is kept as is, so stronger methods are never downgraded. The
// boolean reports whether a record was written.
func (l *Local) Seen(ctx context.Context, handle model.Handle, k model.KeyMaterial) (bool, error) {
	fp, err := fingerprint.Compute(k)
	if err != nil {
		return false, err
	}
	existing, ok, err := l.trust.Record(handle, k.Type)
	if err != nil {
		return false, err
	}
	if ok && existing.Fingerprint.Equal(fp) {
		return false, nil
	}
	if handle == l.handle {
		// SetRecord logs and drops the write.
		return false, l.trust.SetRecord(ctx, handle, fp[:], k.Type, model.MethodSeen, model.ConfidenceUnsure)
	}
	if err := l.trust.SetRecord(ctx, handle, fp[:], k.Type, model.MethodSeen, model.ConfidenceUnsure); err != nil {
		return false, err
	}
	return true, nil
}

// Close zeroizes the private signing key. The Local cannot sign afterwards.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.priv != nil {
		keys.Wipe(l.priv)
		l.priv = nil
	}
	return nil
}
