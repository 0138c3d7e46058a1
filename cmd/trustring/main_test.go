package main

import (
	"bytes"
	"strings"
	"testing"
)

const (
	testHandle = "LUgbt7WE1gz"
	testPeer   = "An6UebxCZd"
	rsaKeyHex  = "c3c3c3c3:010001"
	rsaFP      = "7e936b6af610fd54848d674a193d7685289353ed"
	ed25519Hex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	ed25519FP  = "630dcd2966c4336691125448bbb25b4ff412a49c"
	peerFPHex  = "aabbaabbaabbaabbaabbaabbaabbaabbaabbaabb"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func identityArgs(dir string) []string {
	return []string{
		"--handle", testHandle,
		"--key-type", "rsa", "--key-hex", rsaKeyHex,
		"--backend", "localfs", "--localfs-dir", dir,
	}
}

func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if k, v, ok := strings.Cut(line, "\t"); ok && k == name {
			return v
		}
	}
	t.Fatalf("field %q not in output:\n%s", name, out)
	return ""
}

func TestFingerprintVectors(t *testing.T) {
	code, out, errOut := runCLI(t, "fingerprint", "--type", "ed25519", "--hex", ed25519Hex)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) != ed25519FP {
		t.Fatalf("ed25519 fingerprint: got %q", out)
	}

	code, out, errOut = runCLI(t, "fingerprint", "--type", "rsa", "--hex", rsaKeyHex)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) != rsaFP {
		t.Fatalf("rsa fingerprint: got %q", out)
	}

	code, out, _ = runCLI(t, "fingerprint", "--type", "rsa", "--hex", rsaKeyHex, "--form", "binary")
	if code != 0 || len(out) != 20 {
		t.Fatalf("binary form: exit %d, %d bytes", code, len(out))
	}
}

func TestInitSignVerify(t *testing.T) {
	t.Setenv("TRUSTRING_PASSPHRASE", "")
	dir := t.TempDir()

	code, out, errOut := runCLI(t, append([]string{"init"}, identityArgs(dir)...)...)
	if code != 0 {
		t.Fatalf("init exit %d: %s", code, errOut)
	}
	if got := field(t, out, "state"); got != "bootstrapped" {
		t.Fatalf("first init state %q", got)
	}
	signer := field(t, out, "signer")
	if got := field(t, out, "long-term"); got != "rsa "+rsaFP {
		t.Fatalf("long-term line %q", got)
	}

	code, out, errOut = runCLI(t, append([]string{"init"}, identityArgs(dir)...)...)
	if code != 0 {
		t.Fatalf("second init exit %d: %s", code, errOut)
	}
	if got := field(t, out, "state"); got != "key-verified" {
		t.Fatalf("second init state %q", got)
	}
	if field(t, out, "signer") != signer {
		t.Fatalf("signing key changed between runs")
	}

	signArgs := append([]string{"sign"}, identityArgs(dir)...)
	signArgs = append(signArgs, "--type", "ed25519", "--hex", ed25519Hex)
	code, out, errOut = runCLI(t, signArgs...)
	if code != 0 {
		t.Fatalf("sign exit %d: %s", code, errOut)
	}
	env := strings.TrimSpace(out)

	code, out, errOut = runCLI(t, "verify", "--type", "ed25519", "--hex", ed25519Hex, "--signer", signer, "--sig", env)
	if code != 0 || !strings.HasPrefix(out, "valid") {
		t.Fatalf("verify exit %d out %q err %q", code, out, errOut)
	}

	tampered := []byte(env)
	if tampered[len(tampered)-1] == '0' {
		tampered[len(tampered)-1] = '1'
	} else {
		tampered[len(tampered)-1] = '0'
	}
	code, out, _ = runCLI(t, "verify", "--type", "ed25519", "--hex", ed25519Hex, "--signer", signer, "--sig", string(tampered))
	if code != 1 || strings.TrimSpace(out) != "invalid" {
		t.Fatalf("tampered verify: exit %d out %q", code, out)
	}
}

func TestTrustCommands(t *testing.T) {
	t.Setenv("TRUSTRING_PASSPHRASE", "")
	dir := t.TempDir()
	id := identityArgs(dir)
	with := func(cmd ...string) []string { return append(append([]string{}, cmd...), id...) }

	if code, _, errOut := runCLI(t, with("init")...); code != 0 {
		t.Fatalf("init: %s", errOut)
	}

	code, out, errOut := runCLI(t, append(with("trust", "set"), "--peer", testPeer, "--type", "ed25519", "--fingerprint", peerFPHex)...)
	if code != 0 {
		t.Fatalf("trust set exit %d: %s", code, errOut)
	}
	want := testPeer + "\t" + peerFPHex + "\tfingerprint-comparison\tunsure\n"
	if out != want {
		t.Fatalf("trust set output %q want %q", out, want)
	}

	code, out, _ = runCLI(t, append(with("trust", "get"), "--peer", testPeer, "--type", "ed25519")...)
	if code != 0 || out != want {
		t.Fatalf("trust get exit %d out %q", code, out)
	}

	code, out, _ = runCLI(t, append(with("trust", "list"), "--type", "ed25519")...)
	if code != 0 || out != want {
		t.Fatalf("trust list exit %d out %q", code, out)
	}

	code, _, _ = runCLI(t, append(with("trust", "set"), "--peer", testHandle, "--type", "ed25519", "--fingerprint", peerFPHex)...)
	if code != 1 {
		t.Fatalf("self trust set should be refused, exit %d", code)
	}

	code, _, _ = runCLI(t, append(with("trust", "scrub"), "--type", "ed25519")...)
	if code != 2 {
		t.Fatalf("scrub without --yes should exit 2, got %d", code)
	}
	code, _, errOut = runCLI(t, append(with("trust", "scrub"), "--type", "ed25519", "--yes")...)
	if code != 0 {
		t.Fatalf("scrub exit %d: %s", code, errOut)
	}
	code, _, _ = runCLI(t, append(with("trust", "get"), "--peer", testPeer, "--type", "ed25519")...)
	if code != 1 {
		t.Fatalf("get after scrub should report no record, exit %d", code)
	}
}

func TestTrustAuthByFingerprint(t *testing.T) {
	t.Setenv("TRUSTRING_PASSPHRASE", "")
	dir := t.TempDir()
	id := identityArgs(dir)
	if code, _, errOut := runCLI(t, append([]string{"init"}, id...)...); code != 0 {
		t.Fatalf("init: %s", errOut)
	}

	args := append([]string{"trust", "auth"}, id...)
	args = append(args, "--peer", testPeer, "--type", "ed25519", "--hex", ed25519Hex, "--fingerprint", ed25519FP)
	code, out, errOut := runCLI(t, args...)
	if code != 0 {
		t.Fatalf("auth exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "fingerprint-comparison") {
		t.Fatalf("unexpected output %q", out)
	}

	args = append([]string{"trust", "auth"}, id...)
	args = append(args, "--peer", testPeer, "--type", "ed25519", "--hex", ed25519Hex, "--fingerprint", peerFPHex)
	code, out, _ = runCLI(t, args...)
	if code != 1 || strings.TrimSpace(out) != "not authenticated" {
		t.Fatalf("mismatch: exit %d out %q", code, out)
	}
}

func TestUsageErrors(t *testing.T) {
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("no args: exit %d", code)
	}
	if code, _, _ := runCLI(t, "bogus"); code != 2 {
		t.Fatalf("unknown command: exit %d", code)
	}
	if code, out, _ := runCLI(t, "backends"); code != 0 || !strings.Contains(out, "localfs") {
		t.Fatalf("backends: exit %d out %q", code, out)
	}
	if code, _, _ := runCLI(t, "fingerprint", "--type", "dsa", "--hex", "00"); code != 2 {
		t.Fatalf("bad key type: exit %d", code)
	}
}
