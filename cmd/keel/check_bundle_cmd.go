package main

import (
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/keel/pkg/archive"
)

// runCheckBundleCmd implements `keel check-bundle`.
//
// Verifies an exported bundle offline: format version, manifest
// consistency, the full hash chain, and (when a public key is given)
// the manifest signature. Needs no backend, so auditors can run it on
// an air-gapped copy.
//
// Exit codes:
//
//	0 = bundle verified
//	1 = verification failed
//	2 = usage error or unreadable bundle
func runCheckBundleCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("check-bundle", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		bundlePath string
		pubHex     string
		jsonOutput bool
	)

	cmd.StringVar(&bundlePath, "bundle", "", "Path to the bundle file (REQUIRED)")
	cmd.StringVar(&pubHex, "pub", "", "Hex Ed25519 public key to check the manifest signature against")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if bundlePath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --bundle is required")
		return 2
	}

	var pub ed25519.PublicKey
	if pubHex != "" {
		var err error
		pub, err = archive.ParsePublicKey(pubHex)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: invalid public key: %v\n", err)
			return 2
		}
	}

	data, err := os.ReadFile(bundlePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot read bundle: %v\n", err)
		return 2
	}
	var bundle archive.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot parse bundle: %v\n", err)
		return 2
	}

	verifyErr := archive.Verify(&bundle, pub)

	result := map[string]any{
		"bundle":    bundlePath,
		"format":    bundle.Manifest.Format,
		"stream":    bundle.Manifest.OriginatorID.String(),
		"items":     bundle.Manifest.Count,
		"first":     bundle.Manifest.FirstPosition,
		"last":      bundle.Manifest.LastPosition,
		"head_hash": bundle.Manifest.HeadHash,
		"verified":  verifyErr == nil,
	}
	if verifyErr != nil {
		result["reason"] = verifyErr.Error()
	}
	if pub != nil {
		result["signature_checked"] = true
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(out))
	} else if verifyErr == nil {
		_, _ = fmt.Fprintf(stdout, "✅ Bundle verification PASSED\n")
		_, _ = fmt.Fprintf(stdout, "Bundle: %s\n", bundlePath)
		_, _ = fmt.Fprintf(stdout, "Stream: %s\n", bundle.Manifest.OriginatorID)
		_, _ = fmt.Fprintf(stdout, "Items:  %d (positions %d..%d)\n", bundle.Manifest.Count, bundle.Manifest.FirstPosition, bundle.Manifest.LastPosition)
		_, _ = fmt.Fprintf(stdout, "Head:   %s\n", bundle.Manifest.HeadHash)
		if pub != nil {
			_, _ = fmt.Fprintf(stdout, "Signature: valid (%s)\n", bundle.Manifest.SignatureKeyID)
		}
	} else {
		_, _ = fmt.Fprintf(stdout, "❌ Bundle verification FAILED\n")
		_, _ = fmt.Fprintf(stdout, "Bundle: %s\n", bundlePath)
		_, _ = fmt.Fprintf(stdout, "  - %v\n", verifyErr)
	}

	if verifyErr != nil {
		return 1
	}
	return 0
}
