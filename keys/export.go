package keys

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"

	"xdao.co/trustring/model"
)

// PublicKeyString encodes a signing public key for display: "ed25519:" + base64.
func PublicKeyString(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub), nil
}

// ParsePublicKeyString is the inverse of PublicKeyString.
func ParsePublicKeyString(s string) (ed25519.PublicKey, error) {
	alg, enc, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || alg != "ed25519" {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-EXPORT-001", "expected ed25519:<base64>")
	}
	b, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(enc); err != nil {
			return nil, model.WrapError(model.KindInvalidInput, "TRUST-EXPORT-002", "invalid public key base64", err)
		}
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, model.NewError(model.KindInvalidInput, "TRUST-EXPORT-003", fmt.Sprintf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b)))
	}
	return ed25519.PublicKey(b), nil
}
