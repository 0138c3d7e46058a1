package keys

import (
	"crypto/subtle"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"xdao.co/trustring/model"
)

const (
	sealVersion = 1
	saltSize    = 16
	kekSize     = chacha20poly1305.KeySize
)

// Argon2id parameters for sealVersion 1.
var (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
)

func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, kekSize)
}

// SealSeed encrypts a signing seed under passphrase.
// Layout: version(1) || salt(16) || nonce(12) || ciphertext.
func SealSeed(passphrase string, seed []byte, rand io.Reader) ([]byte, error) {
	if passphrase == "" {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-SEAL-001", "empty passphrase")
	}
	header := make([]byte, 1+saltSize+chacha20poly1305.NonceSize)
	header[0] = sealVersion
	if _, err := io.ReadFull(rand, header[1:]); err != nil {
		return nil, fmt.Errorf("reading randomness: %w", err)
	}
	salt := header[1 : 1+saltSize]
	nonce := header[1+saltSize:]

	kek := deriveKEK(passphrase, salt)
	defer Wipe(kek)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, model.WrapError(model.KindCrypto, "TRUST-SEAL-002", "aead setup failed", err)
	}
	out := make([]byte, len(header), len(header)+len(seed)+aead.Overhead())
	copy(out, header)
	return aead.Seal(out, nonce, seed, header[:1]), nil
}

// OpenSeed decrypts a blob produced by SealSeed.
func OpenSeed(passphrase string, blob []byte) ([]byte, error) {
	minLen := 1 + saltSize + chacha20poly1305.NonceSize + chacha20poly1305.Overhead
	if len(blob) < minLen {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-SEAL-010", fmt.Sprintf("sealed seed too short: %d bytes", len(blob)))
	}
	if blob[0] != sealVersion {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-SEAL-011", fmt.Sprintf("unsupported sealed seed version %d", blob[0]))
	}
	salt := blob[1 : 1+saltSize]
	nonce := blob[1+saltSize : 1+saltSize+chacha20poly1305.NonceSize]
	ct := blob[1+saltSize+chacha20poly1305.NonceSize:]

	kek := deriveKEK(passphrase, salt)
	defer Wipe(kek)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, model.WrapError(model.KindCrypto, "TRUST-SEAL-012", "aead setup failed", err)
	}
	seed, err := aead.Open(nil, nonce, ct, blob[:1])
	if err != nil {
		return nil, model.WrapError(model.KindCrypto, "TRUST-SEAL-013", "cannot open sealed seed (wrong passphrase?)", err)
	}
	return seed, nil
}

// Wipe overwrites b with zeros.
//
//go:noinline
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(&b)
}
