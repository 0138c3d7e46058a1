package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"regexp"
	"testing"

	"xdao.co/trustring/model"
)

func testKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestEd25519Vector(t *testing.T) {
	got, err := ComputeHex(model.Ed25519Key(testKey()))
	if err != nil {
		t.Fatalf("ComputeHex: %v", err)
	}
	const want = "630dcd2966c4336691125448bbb25b4ff412a49c"
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	if !regexp.MustCompile(`^[0-9a-f]{40}$`).MatchString(got) {
		t.Fatalf("not 40 lowercase hex chars: %q", got)
	}
}

func TestRSAVector(t *testing.T) {
	k := model.RSAKey([]byte{0xc3, 0xc3, 0xc3, 0xc3}, []byte{0x01, 0x00, 0x01})
	got, err := ComputeHex(k)
	if err != nil {
		t.Fatalf("ComputeHex: %v", err)
	}
	const want = "7e936b6af610fd54848d674a193d7685289353ed"
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestBinaryMatchesTruncatedSHA256(t *testing.T) {
	fp, err := Compute(model.Ed25519Key(testKey()))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	sum := sha256.Sum256(testKey())
	if !bytes.Equal(fp[:], sum[:model.FingerprintSize]) {
		t.Fatalf("binary fingerprint is not truncated sha256")
	}

	raw, err := ComputeForm(model.Ed25519Key(testKey()), FormBinary)
	if err != nil || !bytes.Equal(raw, fp[:]) {
		t.Fatalf("ComputeForm binary: %x, %v", raw, err)
	}
	hexForm, err := ComputeForm(model.Ed25519Key(testKey()), FormHex)
	if err != nil || string(hexForm) != fp.Hex() {
		t.Fatalf("ComputeForm hex: %s, %v", hexForm, err)
	}
}

func TestRejectsBadEd25519Length(t *testing.T) {
	if _, err := Compute(model.Ed25519Key(make([]byte, 33))); !model.IsKind(err, model.KindInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
	if _, err := Compute(model.KeyMaterial{Type: 0, Public: testKey()}); !model.IsKind(err, model.KindUnsupportedKeyType) {
		t.Fatalf("expected UnsupportedKeyType, got %v", err)
	}
}

func TestEqual(t *testing.T) {
	fp, err := Compute(model.Ed25519Key(testKey()))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	other := fp
	other[0] ^= 1

	cases := []struct {
		name      string
		a, b      []byte
		wantEqual bool
		wantKnown bool
	}{
		{"binary-binary", fp[:], fp[:], true, true},
		{"binary-hex", fp[:], []byte(fp.Hex()), true, true},
		{"hex-binary", []byte(fp.Hex()), fp[:], true, true},
		{"different", fp[:], other[:], false, true},
		{"nil-left", nil, fp[:], false, false},
		{"nil-right", fp[:], nil, false, false},
		{"empty", []byte{}, []byte{}, false, false},
		{"garbage", []byte("nope"), fp[:], false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eq, known := Equal(tc.a, tc.b)
			if eq != tc.wantEqual || known != tc.wantKnown {
				t.Fatalf("Equal = (%v, %v), want (%v, %v)", eq, known, tc.wantEqual, tc.wantKnown)
			}
		})
	}

	if eq, known := EqualString(fp.Hex(), fp.Hex()); !eq || !known {
		t.Fatalf("EqualString mismatch")
	}
}

func TestDecode(t *testing.T) {
	fp, _ := Compute(model.Ed25519Key(testKey()))
	got, err := Decode(fp.Hex())
	if err != nil || got != fp {
		t.Fatalf("Decode: %v, %v", got, err)
	}
	if _, err := Decode("abc"); !model.IsKind(err, model.KindInvalidInput) {
		t.Fatalf("short: %v", err)
	}
}
