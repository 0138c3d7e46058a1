package model

import (
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"math/big"
	"strings"
)

// KeyType is the cryptographic key family a trust record pertains to.
// The zero value is not a valid key type.
type KeyType uint8

const (
	KeyTypeEd25519 KeyType = iota + 1
	KeyTypeRSA
)

type keyTypeInfo struct {
	name string
	slot string
}

var keyTypeTable = [...]keyTypeInfo{
	KeyTypeEd25519: {name: "ed25519", slot: "trust.ed25519"},
	KeyTypeRSA:     {name: "rsa", slot: "trust.rsa"},
}

// KeyTypes lists every supported key type.
func KeyTypes() []KeyType { return []KeyType{KeyTypeEd25519, KeyTypeRSA} }

func (k KeyType) Valid() bool {
	return k >= KeyTypeEd25519 && int(k) < len(keyTypeTable)
}

// Check returns an UnsupportedKeyType error for invalid key types.
func (k KeyType) Check() error {
	if !k.Valid() {
		return NewError(KindUnsupportedKeyType, "TRUST-KEY-001", fmt.Sprintf("unsupported key type %d", uint8(k)))
	}
	return nil
}

func (k KeyType) String() string {
	if !k.Valid() {
		return fmt.Sprintf("KeyType(%d)", uint8(k))
	}
	return keyTypeTable[k].name
}

// Slot is the attribute-store slot holding this key type's trust ring.
func (k KeyType) Slot() string {
	if !k.Valid() {
		return ""
	}
	return keyTypeTable[k].slot
}

// ParseKeyType parses "ed25519" or "rsa" (case-insensitive).
func ParseKeyType(s string) (KeyType, error) {
	for _, k := range KeyTypes() {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, NewError(KindUnsupportedKeyType, "TRUST-KEY-002", fmt.Sprintf("unsupported key type %q", s))
}

// KeyMaterial is a public key in the form used for fingerprinting and
// attestation. Ed25519 keys use Public; RSA keys use Modulus and Exponent as
// big-endian byte strings.
type KeyMaterial struct {
	Type     KeyType
	Public   []byte
	Modulus  []byte
	Exponent []byte
}

func Ed25519Key(pub []byte) KeyMaterial {
	return KeyMaterial{Type: KeyTypeEd25519, Public: pub}
}

func RSAKey(modulus, exponent []byte) KeyMaterial {
	return KeyMaterial{Type: KeyTypeRSA, Modulus: modulus, Exponent: exponent}
}

// RSAKeyFromPublic extracts modulus and exponent bytes from pub.
func RSAKeyFromPublic(pub *rsa.PublicKey) KeyMaterial {
	return RSAKey(pub.N.Bytes(), big.NewInt(int64(pub.E)).Bytes())
}

// Canonical returns the bytes that are hashed and signed for this key:
// the raw 32-byte key for Ed25519, modulus||exponent for RSA.
func (k KeyMaterial) Canonical() ([]byte, error) {
	switch k.Type {
	case KeyTypeEd25519:
		if len(k.Public) != ed25519.PublicKeySize {
			return nil, NewError(KindInvalidInput, "TRUST-KEY-011", fmt.Sprintf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(k.Public)))
		}
		return append([]byte(nil), k.Public...), nil
	case KeyTypeRSA:
		if len(k.Modulus) == 0 || len(k.Exponent) == 0 {
			return nil, NewError(KindInvalidInput, "TRUST-KEY-012", "rsa key requires modulus and exponent")
		}
		out := make([]byte, 0, len(k.Modulus)+len(k.Exponent))
		out = append(out, k.Modulus...)
		return append(out, k.Exponent...), nil
	default:
		return nil, k.Type.Check()
	}
}
