// Package model defines the shared types of the trust ring: remote handles,
// fingerprints, trust records, key types and the structured error taxonomy.
//
// Nothing in this package touches storage or the network. Wire encoding of
// records lives in package codec; hashing lives in package fingerprint.
package model
