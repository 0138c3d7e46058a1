package keys

import (
	"fmt"
	"io"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"

	"xdao.co/trustring/model"
)

const domainPrefix = "trustring/key-attestation/v1\x00"

// EnvelopeSize is the length of an attestation envelope.
const EnvelopeSize = TimestampSize + ed25519.SignatureSize

// GenerateSigningKey returns a new Ed25519 key pair drawn from rand.
func GenerateSigningKey(rand io.Reader) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand)
}

// SigningKeyFromSeed expands a 32-byte seed into a private key.
func SigningKeyFromSeed(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-SIGN-001", fmt.Sprintf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed)))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// PublicOf returns the public half of priv.
func PublicOf(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

func attestationMessage(ts []byte, k model.KeyMaterial) ([]byte, error) {
	key, err := k.Canonical()
	if err != nil {
		return nil, err
	}
	msg := make([]byte, 0, len(domainPrefix)+len(ts)+len(key))
	msg = append(msg, domainPrefix...)
	msg = append(msg, ts...)
	return append(msg, key...), nil
}

// SignKey attests k with priv at time now and returns timestamp||signature.
func SignKey(k model.KeyMaterial, priv ed25519.PrivateKey, now time.Time) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-SIGN-002", fmt.Sprintf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv)))
	}
	secs, err := unixSeconds(now)
	if err != nil {
		return nil, err
	}
	ts, err := EncodeTimestamp(secs)
	if err != nil {
		return nil, err
	}
	msg, err := attestationMessage(ts[:], k)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, EnvelopeSize)
	out = append(out, ts[:]...)
	return append(out, ed25519.Sign(priv, msg)...), nil
}

// VerifyKey checks an envelope produced by SignKey against k and signer.
//
// A signature that does not verify yields (false, nil). Errors are reserved
// for malformed input, out-of-range timestamps and envelopes dated after now
// (KindFutureTimestamp).
func VerifyKey(envelope []byte, k model.KeyMaterial, signer ed25519.PublicKey, now time.Time) (bool, error) {
	if len(signer) != ed25519.PublicKeySize {
		return false, model.NewError(model.KindInvalidInput, "TRUST-VERIFY-001", fmt.Sprintf("signer key must be %d bytes, got %d", ed25519.PublicKeySize, len(signer)))
	}
	if len(envelope) < TimestampSize {
		return false, model.NewError(model.KindInvalidInput, "TRUST-VERIFY-002", fmt.Sprintf("envelope too short: %d bytes", len(envelope)))
	}
	ts, err := DecodeTimestamp(envelope[:TimestampSize])
	if err != nil {
		return false, err
	}
	secs, err := unixSeconds(now)
	if err != nil {
		return false, err
	}
	if ts > secs {
		return false, model.NewError(model.KindFutureTimestamp, "TRUST-VERIFY-003", fmt.Sprintf("signature timestamp %d is after local time %d", ts, secs))
	}
	msg, err := attestationMessage(envelope[:TimestampSize], k)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(signer, msg, envelope[TimestampSize:]), nil
}

// SignedAt returns the timestamp carried by an envelope.
func SignedAt(envelope []byte) (time.Time, error) {
	if len(envelope) < TimestampSize {
		return time.Time{}, model.NewError(model.KindInvalidInput, "TRUST-VERIFY-002", fmt.Sprintf("envelope too short: %d bytes", len(envelope)))
	}
	ts, err := DecodeTimestamp(envelope[:TimestampSize])
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}
