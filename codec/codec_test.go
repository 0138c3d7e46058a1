package codec

import (
	"bytes"
	"strings"
	"testing"

	"xdao.co/trustring/model"
)

func sampleCollection() model.Collection {
	c := model.Collection{}
	for i := 0; i < 5; i++ {
		var r model.Record
		r.Handle = model.Handle{byte(i), 0xee, 0, 0, 0, 0, 0, byte(10 - i)}
		for j := range r.Fingerprint {
			r.Fingerprint[j] = byte(i*31 + j)
		}
		r.Method = model.Method(i % 3)
		r.Confidence = model.ConfidenceUnsure
		c[r.Handle] = r
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	in := sampleCollection()
	b, err := Serialize(in)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if len(b) != len(in)*RecordSize {
		t.Fatalf("length %d, want %d", len(b), len(in)*RecordSize)
	}
	out, err := Deserialize(b)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d records want %d", len(out), len(in))
	}
	for h, want := range in {
		got, ok := out[h]
		if !ok {
			t.Fatalf("missing handle %s", h)
		}
		if got != want {
			t.Fatalf("record %s: got %+v want %+v", h, got, want)
		}
	}
}

func TestSerializeDeterministic(t *testing.T) {
	a, err := Serialize(sampleCollection())
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	for i := 0; i < 10; i++ {
		b, err := Serialize(sampleCollection())
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("serialization depends on map order")
		}
	}
}

func TestEmpty(t *testing.T) {
	b, err := Serialize(model.Collection{})
	if err != nil || len(b) != 0 {
		t.Fatalf("empty collection: %x, %v", b, err)
	}
	c, err := Deserialize(nil)
	if err != nil || len(c) != 0 {
		t.Fatalf("empty blob: %v, %v", c, err)
	}
}

func TestMalformedLengths(t *testing.T) {
	for _, n := range []int{1, 8, 28, 30, 57, 59, 100} {
		_, err := Deserialize(make([]byte, n))
		if !model.IsKind(err, model.KindMalformedRecord) {
			t.Fatalf("len %d: expected MalformedRecord, got %v", n, err)
		}
	}
	if _, _, err := DeserializeOne(make([]byte, RecordSize-1)); !model.IsKind(err, model.KindMalformedRecord) {
		t.Fatalf("DeserializeOne short: got %v", err)
	}
}

func TestSerializeRecordLayout(t *testing.T) {
	h := model.Handle{1, 2, 3, 4, 5, 6, 7, 8}
	fpHex := strings.Repeat("aabbcc", 6) + "aabb"
	b, err := SerializeRecord(h, []byte(fpHex), model.MethodFingerprintComparison, model.ConfidenceUnsure)
	if err != nil {
		t.Fatalf("SerializeRecord: %v", err)
	}
	if len(b) != RecordSize {
		t.Fatalf("got %d bytes", len(b))
	}
	if !bytes.Equal(b[:8], h[:]) {
		t.Fatalf("handle bytes: %x", b[:8])
	}
	if b[8] != 0xaa || b[9] != 0xbb || b[10] != 0xcc {
		t.Fatalf("fingerprint not hex-decoded: %x", b[8:28])
	}
	if b[28] != 0x01 {
		t.Fatalf("trust byte %#x", b[28])
	}

	if _, err := SerializeRecord(h, make([]byte, 21), model.MethodSeen, model.ConfidenceUnsure); !model.IsKind(err, model.KindInvalidInput) {
		t.Fatalf("21-byte fingerprint: got %v", err)
	}
	if _, err := SerializeRecord(h, make([]byte, 20), 16, model.ConfidenceUnsure); !model.IsKind(err, model.KindInvalidInput) {
		t.Fatalf("method 16: got %v", err)
	}
}

func TestReservedNibblesPreserved(t *testing.T) {
	blob := make([]byte, RecordSize)
	blob[RecordSize-1] = 0x5c
	c, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	r := c[model.Handle{}]
	if r.Confidence != 5 || r.Method != 12 {
		t.Fatalf("got confidence=%d method=%d", r.Confidence, r.Method)
	}
	again, err := Serialize(c)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.Equal(again, blob) {
		t.Fatalf("reserved values not preserved: %x", again)
	}
}

func TestDuplicateHandleLastWins(t *testing.T) {
	first, _ := SerializeRecord(model.Handle{1}, make([]byte, 20), model.MethodSeen, model.ConfidenceUnsure)
	second, _ := SerializeRecord(model.Handle{1}, bytes.Repeat([]byte{1}, 20), model.MethodSignatureVerified, model.ConfidenceUnsure)
	c, err := Deserialize(append(first, second...))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if len(c) != 1 || c[model.Handle{1}].Method != model.MethodSignatureVerified {
		t.Fatalf("unexpected %+v", c)
	}
}
