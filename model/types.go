package model

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
)

// HandleSize is the width of a remote identity handle on the wire.
const HandleSize = 8

// Handle identifies a remote party. It is externally assigned and opaque;
// its textual form is base58.
type Handle [HandleSize]byte

// HandleFromBytes copies exactly HandleSize bytes into a Handle.
func HandleFromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleSize {
		return h, NewError(KindInvalidInput, "TRUST-MODEL-001", fmt.Sprintf("handle must be %d bytes, got %d", HandleSize, len(b)))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHandle decodes the base58 textual form of a handle.
func ParseHandle(s string) (Handle, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Handle{}, WrapError(KindInvalidInput, "TRUST-MODEL-002", "invalid handle encoding", err)
	}
	return HandleFromBytes(b)
}

func (h Handle) String() string { return base58.Encode(h[:]) }

// Bytes returns a copy of the raw handle bytes.
func (h Handle) Bytes() []byte { return append([]byte(nil), h[:]...) }

// FingerprintSize is the truncated digest width (160 bits).
const FingerprintSize = 20

// Fingerprint is the truncated hash of a public key.
type Fingerprint [FingerprintSize]byte

// ParseFingerprint accepts either the 20 raw bytes or the 40-character hex
// form of a fingerprint.
func ParseFingerprint(b []byte) (Fingerprint, error) {
	var fp Fingerprint
	switch len(b) {
	case FingerprintSize:
		copy(fp[:], b)
		return fp, nil
	case 2 * FingerprintSize:
		if _, err := hex.Decode(fp[:], b); err != nil {
			return Fingerprint{}, WrapError(KindInvalidInput, "TRUST-MODEL-011", "invalid fingerprint hex", err)
		}
		return fp, nil
	default:
		return fp, NewError(KindInvalidInput, "TRUST-MODEL-010", fmt.Sprintf("fingerprint must be %d bytes or %d hex chars, got %d bytes", FingerprintSize, 2*FingerprintSize, len(b)))
	}
}

// Hex returns the 40 lowercase hex characters of the fingerprint.
func (f Fingerprint) Hex() string { return hex.EncodeToString(f[:]) }

func (f Fingerprint) String() string { return f.Hex() }

// Equal compares two fingerprints in constant time.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return subtle.ConstantTimeCompare(f[:], o[:]) == 1
}

// Method records how a trust record was established. Only the low 4 bits are
// meaningful on the wire; values 3-15 are reserved and preserved as-is.
type Method uint8

const (
	MethodSeen                  Method = 0
	MethodFingerprintComparison Method = 1
	MethodSignatureVerified     Method = 2
)

func (m Method) String() string {
	switch m {
	case MethodSeen:
		return "seen"
	case MethodFingerprintComparison:
		return "fingerprint-comparison"
	case MethodSignatureVerified:
		return "signature-verified"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(m))
	}
}

// ParseMethod parses the String form of a known method.
func ParseMethod(s string) (Method, error) {
	for _, m := range []Method{MethodSeen, MethodFingerprintComparison, MethodSignatureVerified} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, NewError(KindInvalidInput, "TRUST-MODEL-020", fmt.Sprintf("unknown method %q", s))
}

// Confidence is the confidence tier of a trust record (4 bits on the wire).
type Confidence uint8

const ConfidenceUnsure Confidence = 0

func (c Confidence) String() string {
	if c == ConfidenceUnsure {
		return "unsure"
	}
	return fmt.Sprintf("reserved(%d)", uint8(c))
}

const nibbleMax = 0x0f

// PackTrust packs confidence and method into one byte: (confidence<<4)|method.
func PackTrust(c Confidence, m Method) (byte, error) {
	if c > nibbleMax || m > nibbleMax {
		return 0, NewError(KindInvalidInput, "TRUST-MODEL-021", fmt.Sprintf("method %d / confidence %d out of 4-bit range", m, c))
	}
	return byte(c)<<4 | byte(m), nil
}

// UnpackTrust is the inverse of PackTrust.
func UnpackTrust(b byte) (Confidence, Method) {
	return Confidence(b >> 4), Method(b & nibbleMax)
}

// Record is one stored belief about a remote identity's key.
type Record struct {
	Handle      Handle
	Fingerprint Fingerprint
	Method      Method
	Confidence  Confidence
}

// Collection maps handles to their trust records for one key type.
type Collection map[Handle]Record

// Clone returns an independent copy of c.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for h, r := range c {
		out[h] = r
	}
	return out
}

// Handles returns the handles of c in byte order.
func (c Collection) Handles() []Handle {
	out := make([]Handle, 0, len(c))
	for h := range c {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}
