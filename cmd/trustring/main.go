package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"xdao.co/trustring/fingerprint"
	"xdao.co/trustring/keys"
	"xdao.co/trustring/storage/registry"

	_ "xdao.co/trustring/storage/grpcattr"
	_ "xdao.co/trustring/storage/localfs"
	_ "xdao.co/trustring/storage/sqlite"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "init":
		return cmdInit(args[1:], out, errOut)
	case "fingerprint":
		return cmdFingerprint(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "trust":
		return cmdTrust(args[1:], out, errOut)
	case "backends":
		printBackends(out)
		return 0
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "trustring: contact-key trust store")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  trustring init [identity flags]")
	fmt.Fprintln(w, "  trustring fingerprint --type ed25519|rsa (--pem <file> | --hex <key>) [--form hex|binary]")
	fmt.Fprintln(w, "  trustring sign [identity flags] --type ed25519|rsa (--pem <file> | --hex <key>)")
	fmt.Fprintln(w, "  trustring verify --type ed25519|rsa (--pem <file> | --hex <key>) --signer ed25519:<base64> --sig <hex>")
	fmt.Fprintln(w, "  trustring trust get|set|list|scrub|auth [identity flags] ...")
	fmt.Fprintln(w, "  trustring backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Identity flags:")
	fmt.Fprintln(w, "  --config <trustring.yaml>")
	fmt.Fprintln(w, "  or --handle <base58> --key-type ed25519|rsa (--key-pem <file> | --key-hex <key>)")
	fmt.Fprintln(w, "     --backend <name> [backend flags, e.g. --localfs-dir <dir>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - rsa --hex keys are written <modulus hex>:<exponent hex>")
	fmt.Fprintln(w, "  - the signing key is sealed when $TRUSTRING_PASSPHRASE (or passphrase_env) is set")
	fmt.Fprintln(w, "  - init is idempotent: later runs verify and, if needed, republish the signing key")
}

func printBackends(w io.Writer) {
	for _, b := range registry.List(registry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func cmdInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var id identityFlags
	id.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: trustring init [identity flags]")
		return 2
	}

	s, err := id.open(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer s.Close()

	signer, err := keys.PublicKeyString(s.local.SigningPublicKey())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fp, err := fingerprint.ComputeHex(s.local.LongTermKey())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "handle\t%s\n", s.local.Handle())
	fmt.Fprintf(out, "state\t%s\n", s.report.State)
	fmt.Fprintf(out, "republished\t%t\n", s.report.Republished)
	fmt.Fprintf(out, "signer\t%s\n", signer)
	fmt.Fprintf(out, "long-term\t%s %s\n", s.local.LongTermKey().Type, fp)
	if err := s.report.LoadErr(); err != nil {
		return 1
	}
	return 0
}

func cmdFingerprint(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var key keyFlags
	key.add(fs, "")
	form := fs.String("form", "hex", "Output form: hex or binary")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	k, err := key.material()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	switch *form {
	case "hex":
		s, err := fingerprint.ComputeHex(k)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = fmt.Fprintln(out, s)
	case "binary":
		b, err := fingerprint.ComputeForm(k, fingerprint.FormBinary)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = out.Write(b)
	default:
		fmt.Fprintf(errOut, "unknown --form %q\n", *form)
		return 2
	}
	return 0
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var id identityFlags
	id.add(fs)
	var key keyFlags
	key.add(fs, "")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	k, err := key.material()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	s, err := id.open(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer s.Close()

	env, err := s.local.SignKey(k)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, hex.EncodeToString(env))
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var key keyFlags
	key.add(fs, "")
	signerStr := fs.String("signer", "", "Signer public key (ed25519:<base64>)")
	sigHex := fs.String("sig", "", "Attestation envelope (hex)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	k, err := key.material()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	signer, err := keys.ParsePublicKeyString(*signerStr)
	if err != nil {
		fmt.Fprintf(errOut, "--signer: %v\n", err)
		return 2
	}
	env, err := hex.DecodeString(*sigHex)
	if err != nil {
		fmt.Fprintf(errOut, "--sig: %v\n", err)
		return 2
	}

	ok, err := keys.VerifyKey(env, k, signer, time.Now())
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !ok {
		_, _ = fmt.Fprintln(out, "invalid")
		return 1
	}
	at, err := keys.SignedAt(env)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "valid\t%s\n", at.Format(time.RFC3339))
	return 0
}
