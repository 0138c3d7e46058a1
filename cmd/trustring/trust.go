package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"xdao.co/trustring/keys"
	"xdao.co/trustring/model"
)

func cmdTrust(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: trustring trust <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: get, set, list, scrub, auth")
		return 2
	}
	switch args[0] {
	case "get":
		return cmdTrustGet(args[1:], out, errOut)
	case "set":
		return cmdTrustSet(args[1:], out, errOut)
	case "list":
		return cmdTrustList(args[1:], out, errOut)
	case "scrub":
		return cmdTrustScrub(args[1:], out, errOut)
	case "auth":
		return cmdTrustAuth(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown trust subcommand: %s\n", args[0])
		return 2
	}
}

func printRecord(w io.Writer, r model.Record) {
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Handle, r.Fingerprint.Hex(), r.Method, r.Confidence)
}

func cmdTrustGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("trust get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var id identityFlags
	id.add(fs)
	peer := fs.String("peer", "", "Remote handle (base58)")
	keyType := fs.String("type", "", "Key type: ed25519 or rsa")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	h, err := model.ParseHandle(*peer)
	if err != nil {
		fmt.Fprintf(errOut, "--peer: %v\n", err)
		return 2
	}
	kt, err := model.ParseKeyType(*keyType)
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

	r, ok, err := s.local.Trust().Record(h, kt)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !ok {
		fmt.Fprintln(errOut, "no record")
		return 1
	}
	printRecord(out, r)
	return 0
}

func cmdTrustSet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("trust set", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var id identityFlags
	id.add(fs)
	peer := fs.String("peer", "", "Remote handle (base58)")
	keyType := fs.String("type", "", "Key type: ed25519 or rsa")
	fp := fs.String("fingerprint", "", "Fingerprint (40 hex chars)")
	method := fs.String("method", model.MethodFingerprintComparison.String(), "seen, fingerprint-comparison or signature-verified")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	h, err := model.ParseHandle(*peer)
	if err != nil {
		fmt.Fprintf(errOut, "--peer: %v\n", err)
		return 2
	}
	kt, err := model.ParseKeyType(*keyType)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	m, err := model.ParseMethod(*method)
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

	if err := s.local.Trust().SetRecord(context.Background(), h, []byte(*fp), kt, m, model.ConfidenceUnsure); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if h == s.local.Handle() {
		fmt.Fprintln(errOut, "refused: cannot record trust for own handle")
		return 1
	}
	r, _, err := s.local.Trust().Record(h, kt)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	printRecord(out, r)
	return 0
}

func cmdTrustList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("trust list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var id identityFlags
	id.add(fs)
	keyType := fs.String("type", "", "Key type: ed25519 or rsa")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	kt, err := model.ParseKeyType(*keyType)
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

	recs, err := s.local.Trust().Records(kt)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if rev, ok := s.local.Trust().Revision(kt); ok {
		fmt.Fprintf(errOut, "revision %s (%d records)\n", rev, len(recs))
	}
	for _, h := range recs.Handles() {
		printRecord(out, recs[h])
	}
	return 0
}

func cmdTrustScrub(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("trust scrub", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var id identityFlags
	id.add(fs)
	keyType := fs.String("type", "", "Key type: ed25519 or rsa")
	yes := fs.Bool("yes", false, "Confirm the irreversible reset")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	kt, err := model.ParseKeyType(*keyType)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if !*yes {
		fmt.Fprintln(errOut, "scrub discards every trust record for this key type; pass --yes to confirm")
		return 2
	}

	s, err := id.open(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer s.Close()

	if err := s.local.Trust().Scrub(context.Background(), kt); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "scrubbed %s\n", kt)
	return 0
}

// cmdTrustAuth authenticates a peer key by attestation or by an out-of-band
// fingerprint; without either it records the key as seen.
func cmdTrustAuth(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("trust auth", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var id identityFlags
	id.add(fs)
	var key keyFlags
	key.add(fs, "")
	peer := fs.String("peer", "", "Remote handle (base58)")
	sigHex := fs.String("sig", "", "Attestation envelope (hex); requires --signer")
	signerStr := fs.String("signer", "", "Signer public key (ed25519:<base64>)")
	claimed := fs.String("fingerprint", "", "Fingerprint obtained out of band (40 hex chars)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	h, err := model.ParseHandle(*peer)
	if err != nil {
		fmt.Fprintf(errOut, "--peer: %v\n", err)
		return 2
	}
	k, err := key.material()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if *sigHex != "" && *claimed != "" {
		fmt.Fprintln(errOut, "use at most one of --sig and --fingerprint")
		return 2
	}

	s, err := id.open(errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer s.Close()

	ctx := context.Background()
	var ok bool
	switch {
	case *sigHex != "":
		signer, perr := keys.ParsePublicKeyString(*signerStr)
		if perr != nil {
			fmt.Fprintf(errOut, "--signer: %v\n", perr)
			return 2
		}
		env, perr := hex.DecodeString(*sigHex)
		if perr != nil {
			fmt.Fprintf(errOut, "--sig: %v\n", perr)
			return 2
		}
		ok, err = s.local.AuthenticateBySignature(ctx, h, k, env, signer)
	case *claimed != "":
		ok, err = s.local.AuthenticateByFingerprint(ctx, h, k, []byte(*claimed))
	default:
		_, err = s.local.Seen(ctx, h, k)
		ok = err == nil
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !ok {
		_, _ = fmt.Fprintln(out, "not authenticated")
		return 1
	}
	r, found, err := s.local.Trust().Record(h, k.Type)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if found {
		printRecord(out, r)
	}
	return 0
}
