// Package fingerprint derives the 160-bit fingerprint of a public key.
//
// The fingerprint is sha2-256 over the key's canonical shaping (see
// model.KeyMaterial.Canonical) truncated to the first 20 bytes.
package fingerprint

import (
	"encoding/hex"
	"fmt"

	"github.com/multiformats/go-multihash"

	"xdao.co/trustring/model"
)

// Form selects the output representation of ComputeForm.
type Form int

const (
	FormBinary Form = iota
	FormHex
)

// Compute returns the binary fingerprint of k.
func Compute(k model.KeyMaterial) (model.Fingerprint, error) {
	var fp model.Fingerprint
	data, err := k.Canonical()
	if err != nil {
		return fp, err
	}
	mh, err := multihash.Sum(data, multihash.SHA2_256, model.FingerprintSize)
	if err != nil {
		return fp, model.WrapError(model.KindCrypto, "TRUST-FP-001", "fingerprint digest failed", err)
	}
	dec, err := multihash.Decode(mh)
	if err != nil {
		return fp, model.WrapError(model.KindCrypto, "TRUST-FP-002", "fingerprint digest failed", err)
	}
	if len(dec.Digest) != model.FingerprintSize {
		return fp, model.NewError(model.KindCrypto, "TRUST-FP-003", fmt.Sprintf("digest length %d", len(dec.Digest)))
	}
	copy(fp[:], dec.Digest)
	return fp, nil
}

// ComputeHex returns the 40 lowercase hex characters of k's fingerprint.
func ComputeHex(k model.KeyMaterial) (string, error) {
	fp, err := Compute(k)
	if err != nil {
		return "", err
	}
	return fp.Hex(), nil
}

// ComputeForm returns k's fingerprint as 20 raw bytes or as 40 hex characters.
func ComputeForm(k model.KeyMaterial, form Form) ([]byte, error) {
	fp, err := Compute(k)
	if err != nil {
		return nil, err
	}
	switch form {
	case FormBinary:
		return fp[:], nil
	case FormHex:
		return []byte(fp.Hex()), nil
	default:
		return nil, model.NewError(model.KindInvalidInput, "TRUST-FP-010", fmt.Sprintf("unknown output form %d", form))
	}
}

// Equal compares two fingerprints given in binary or hex form.
//
// known is false when either side is absent or cannot be read as a
// fingerprint; callers must treat that as "unknown", never as a mismatch.
func Equal(a, b []byte) (equal, known bool) {
	if len(a) == 0 || len(b) == 0 {
		return false, false
	}
	fa, err := model.ParseFingerprint(a)
	if err != nil {
		return false, false
	}
	fb, err := model.ParseFingerprint(b)
	if err != nil {
		return false, false
	}
	return fa.Equal(fb), true
}

// EqualString is Equal for hex strings.
func EqualString(a, b string) (equal, known bool) {
	return Equal([]byte(a), []byte(b))
}

// Decode is a convenience for callers holding a hex fingerprint string.
func Decode(s string) (model.Fingerprint, error) {
	if len(s) != 2*model.FingerprintSize {
		return model.Fingerprint{}, model.NewError(model.KindInvalidInput, "TRUST-FP-020", fmt.Sprintf("hex fingerprint must be %d chars, got %d", 2*model.FingerprintSize, len(s)))
	}
	var fp model.Fingerprint
	if _, err := hex.Decode(fp[:], []byte(s)); err != nil {
		return fp, model.WrapError(model.KindInvalidInput, "TRUST-FP-021", "invalid fingerprint hex", err)
	}
	return fp, nil
}
