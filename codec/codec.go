// Package codec encodes trust rings to and from their persisted wire form.
//
// A ring is a flat concatenation of fixed-width records with no header, length
// prefix or checksum:
//
//	handle(8) || fingerprint(20) || (confidence<<4 | method)(1)
//
// The empty byte string is the empty ring.
package codec

import (
	"fmt"

	"xdao.co/trustring/model"
)

// RecordSize is the width of one encoded record.
const RecordSize = model.HandleSize + model.FingerprintSize + 1

// SerializeRecord encodes one record. fingerprint may be the 20 raw bytes or
// the 40-character hex form.
func SerializeRecord(handle model.Handle, fingerprint []byte, method model.Method, confidence model.Confidence) ([]byte, error) {
	fp, err := model.ParseFingerprint(fingerprint)
	if err != nil {
		return nil, err
	}
	return AppendRecord(make([]byte, 0, RecordSize), model.Record{
		Handle:      handle,
		Fingerprint: fp,
		Method:      method,
		Confidence:  confidence,
	})
}

// AppendRecord appends the encoding of r to dst.
func AppendRecord(dst []byte, r model.Record) ([]byte, error) {
	trust, err := model.PackTrust(r.Confidence, r.Method)
	if err != nil {
		return dst, err
	}
	dst = append(dst, r.Handle[:]...)
	dst = append(dst, r.Fingerprint[:]...)
	return append(dst, trust), nil
}

// Serialize encodes every record of c. Records are written in handle order so
// equal collections always produce identical bytes.
func Serialize(c model.Collection) ([]byte, error) {
	out := make([]byte, 0, len(c)*RecordSize)
	for _, h := range c.Handles() {
		r := c[h]
		r.Handle = h
		var err error
		if out, err = AppendRecord(out, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeserializeOne decodes the first record of b and returns the remaining bytes.
func DeserializeOne(b []byte) (model.Record, []byte, error) {
	if len(b) < RecordSize {
		return model.Record{}, b, model.NewError(model.KindMalformedRecord, "TRUST-CODEC-001",
			fmt.Sprintf("truncated record: %d bytes remain, need %d", len(b), RecordSize))
	}
	var r model.Record
	copy(r.Handle[:], b[:model.HandleSize])
	copy(r.Fingerprint[:], b[model.HandleSize:RecordSize-1])
	r.Confidence, r.Method = model.UnpackTrust(b[RecordSize-1])
	return r, b[RecordSize:], nil
}

// Deserialize decodes a whole ring. If a handle repeats, the later record wins.
func Deserialize(b []byte) (model.Collection, error) {
	if len(b)%RecordSize != 0 {
		return nil, model.NewError(model.KindMalformedRecord, "TRUST-CODEC-002",
			fmt.Sprintf("ring length %d is not a multiple of %d", len(b), RecordSize))
	}
	out := make(model.Collection, len(b)/RecordSize)
	for len(b) > 0 {
		r, rest, err := DeserializeOne(b)
		if err != nil {
			return nil, err
		}
		out[r.Handle] = r
		b = rest
	}
	return out, nil
}
