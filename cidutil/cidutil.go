// Package cidutil names persisted trust-ring blobs by content.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Revision returns a CIDv1 using the "raw" multicodec and a sha2-256
// multihash of blob. Equal blobs always produce equal revisions.
func Revision(blob []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(blob, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// RevisionString is Revision in its canonical string form, or "" on failure.
func RevisionString(blob []byte) string {
	id, err := Revision(blob)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return id.String()
}

// Matches reports whether blob hashes to the revision named by s.
func Matches(s string, blob []byte) (bool, error) {
	want, err := cid.Decode(s)
	if err != nil {
		return false, fmt.Errorf("cidutil: decode revision: %w", err)
	}
	if want.Prefix().Codec != cid.Raw {
		return false, fmt.Errorf("cidutil: unexpected codec %d", want.Prefix().Codec)
	}
	got, err := Revision(blob)
	if err != nil {
		return false, err
	}
	return got.Equals(want), nil
}
