// Package keys signs and verifies key attestations and manages the local
// signing key.
//
// An attestation envelope is an 8-byte big-endian timestamp (seconds since the
// Unix epoch) followed by an Ed25519 signature over
//
//	domainPrefix || timestamp || canonical(key)
//
// where canonical(key) is model.KeyMaterial.Canonical. Verification rejects
// envelopes dated in the future relative to the verifier's clock; it is a
// sanity bound, not replay protection.
//
// The signing seed can be sealed under a passphrase (Argon2id +
// ChaCha20-Poly1305) before it is handed to an attribute store.
package keys
