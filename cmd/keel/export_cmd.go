package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/archive"
	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// runExportCmd implements `keel export`.
//
// Exports a full stream as a portable bundle: the manifest plus every
// stored item, chain-verified before anything is written. With a
// signing key the manifest is signed so auditors can check provenance
// offline with `keel check-bundle`.
//
// Exit codes:
//
//	0 = export completed
//	1 = stream missing, chain broken, or write failed
//	2 = usage or configuration error
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		stream     string
		out        string
		useBlob    bool
		key        string
		signingKey string
		profile    string
		profiles   string
		jsonOutput bool
	)

	cmd.StringVar(&stream, "stream", "", "Stream (originator) UUID (REQUIRED)")
	cmd.StringVar(&out, "out", "", "Output file path (default <stream>.bundle.json)")
	cmd.BoolVar(&useBlob, "blob", false, "Write to the configured blob store instead of a local file")
	cmd.StringVar(&key, "key", "", "Blob key to write under (default <stream>.bundle.json)")
	cmd.StringVar(&signingKey, "signing-key", "", "Hex Ed25519 seed for manifest signing (default $KEEL_SIGNING_KEY)")
	cmd.StringVar(&profile, "profile", "", "Named profile overlay to apply")
	cmd.StringVar(&profiles, "profiles", "", "Path to the profiles file")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if stream == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --stream is required")
		return 2
	}
	streamID, err := uuid.Parse(stream)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid stream id %q: %v\n", stream, err)
		return 2
	}

	if signingKey == "" {
		signingKey = os.Getenv("KEEL_SIGNING_KEY")
	}

	cfg, err := loadConfig(profiles, profile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	setupLogger(cfg, stderr)

	ctx := context.Background()
	rs, cleanup, err := openBackend(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()

	var opts []archive.ExporterOption
	if signingKey != "" {
		signer, err := archive.NewSignerFromSeedHex(signingKey)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: invalid signing key: %v\n", err)
			return 2
		}
		opts = append(opts, archive.WithSigner(signer))
	}

	exporter := archive.NewExporter(rs, opts...)
	bundle, err := exporter.Export(ctx, streamID)
	if err != nil {
		switch {
		case errors.Is(err, sequenced.ErrNotFound):
			_, _ = fmt.Fprintf(stderr, "Stream %s not found\n", streamID)
		case errors.Is(err, sequenced.ErrIntegrity):
			_, _ = fmt.Fprintf(stderr, "Error: refusing to export broken stream: %v\n", err)
		default:
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}

	// Resolve the destination. Blob mode uses the environment-configured
	// store; otherwise the bundle lands in a local file.
	var destination string
	if useBlob {
		blob, err := archive.NewBlobFromEnv(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if key == "" {
			key = streamID.String() + ".bundle.json"
		}
		if err := archive.WriteBundle(ctx, blob, key, bundle); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		destination = key
	} else {
		if out == "" {
			out = streamID.String() + ".bundle.json"
		}
		dir := filepath.Dir(out)
		blob, err := archive.NewFileStore(dir)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if err := archive.WriteBundle(ctx, blob, filepath.Base(out), bundle); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		destination = out
	}

	if jsonOutput {
		result := map[string]any{
			"stream":    streamID.String(),
			"items":     bundle.Manifest.Count,
			"first":     bundle.Manifest.FirstPosition,
			"last":      bundle.Manifest.LastPosition,
			"head_hash": bundle.Manifest.HeadHash,
			"output":    destination,
		}
		if bundle.Manifest.SignatureKeyID != "" {
			result["signed_with"] = bundle.Manifest.SignatureKeyID
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "✅ Exported stream %s\n", streamID)
	_, _ = fmt.Fprintf(stdout, "Items:  %d (positions %d..%d)\n", bundle.Manifest.Count, bundle.Manifest.FirstPosition, bundle.Manifest.LastPosition)
	_, _ = fmt.Fprintf(stdout, "Head:   %s\n", bundle.Manifest.HeadHash)
	if bundle.Manifest.SignatureKeyID != "" {
		_, _ = fmt.Fprintf(stdout, "Signed: %s\n", bundle.Manifest.SignatureKeyID)
	}
	_, _ = fmt.Fprintf(stdout, "Output: %s\n", destination)
	return 0
}
