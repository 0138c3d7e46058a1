package keys

import (
	"encoding/binary"
	"fmt"
	"time"

	"xdao.co/trustring/model"
)

const (
	// TimestampSize is the width of the envelope timestamp.
	TimestampSize = 8

	// MaxTimestamp is the largest timestamp accepted on the wire (2^53-1),
	// the exact-integer range of the peers that share this format.
	MaxTimestamp = 1<<53 - 1
)

// EncodeTimestamp returns v as 8 big-endian bytes.
func EncodeTimestamp(v uint64) ([TimestampSize]byte, error) {
	var out [TimestampSize]byte
	if v > MaxTimestamp {
		return out, model.NewError(model.KindIntegerRange, "TRUST-TS-001", fmt.Sprintf("timestamp %d exceeds %d", v, uint64(MaxTimestamp)))
	}
	binary.BigEndian.PutUint64(out[:], v)
	return out, nil
}

// DecodeTimestamp reads an 8-byte big-endian timestamp.
func DecodeTimestamp(b []byte) (uint64, error) {
	if len(b) != TimestampSize {
		return 0, model.NewError(model.KindInvalidInput, "TRUST-TS-002", fmt.Sprintf("timestamp must be %d bytes, got %d", TimestampSize, len(b)))
	}
	v := binary.BigEndian.Uint64(b)
	if v > MaxTimestamp {
		return 0, model.NewError(model.KindIntegerRange, "TRUST-TS-003", fmt.Sprintf("timestamp %d exceeds %d", v, uint64(MaxTimestamp)))
	}
	return v, nil
}

func unixSeconds(t time.Time) (uint64, error) {
	s := t.Unix()
	if s < 0 {
		return 0, model.NewError(model.KindIntegerRange, "TRUST-TS-004", fmt.Sprintf("time %s precedes the epoch", t.UTC().Format(time.RFC3339)))
	}
	return uint64(s), nil
}
