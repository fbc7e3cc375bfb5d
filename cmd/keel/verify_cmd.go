package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// runVerifyCmd implements `keel verify`.
//
// Reads every stored item of a stream and walks the hash chain from
// genesis, recomputing each event hash and checking each link against
// its predecessor. Any tampering, reordering, or truncation fails.
//
// Exit codes:
//
//	0 = chain verified
//	1 = verification failed or stream not found
//	2 = usage or configuration error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		stream     string
		profile    string
		profiles   string
		jsonOutput bool
	)

	cmd.StringVar(&stream, "stream", "", "Stream (originator) UUID (REQUIRED)")
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

	items, err := rs.GetItems(ctx, streamID, sequenced.Range{})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(items) == 0 {
		_, _ = fmt.Fprintf(stderr, "Stream %s not found\n", streamID)
		return 1
	}

	verifyErr := sequenced.VerifyChain(items, sequenced.GenesisHash)

	result := map[string]any{
		"stream":    streamID.String(),
		"items":     len(items),
		"first":     items[0].Position,
		"last":      items[len(items)-1].Position,
		"head_hash": items[len(items)-1].EventHash,
		"verified":  verifyErr == nil,
	}
	var integrityErr *sequenced.DataIntegrityError
	if errors.As(verifyErr, &integrityErr) {
		result["failed_position"] = integrityErr.Position
		result["reason"] = integrityErr.Reason
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if verifyErr == nil {
		_, _ = fmt.Fprintf(stdout, "✅ Chain verification PASSED\n")
		_, _ = fmt.Fprintf(stdout, "Stream: %s\n", streamID)
		_, _ = fmt.Fprintf(stdout, "Items:  %d (positions %d..%d)\n", len(items), items[0].Position, items[len(items)-1].Position)
		_, _ = fmt.Fprintf(stdout, "Head:   %s\n", items[len(items)-1].EventHash)
	} else {
		_, _ = fmt.Fprintf(stdout, "❌ Chain verification FAILED\n")
		_, _ = fmt.Fprintf(stdout, "Stream: %s\n", streamID)
		if integrityErr != nil {
			_, _ = fmt.Fprintf(stdout, "  - position %d: %s\n", integrityErr.Position, integrityErr.Reason)
		} else {
			_, _ = fmt.Fprintf(stdout, "  - %v\n", verifyErr)
		}
	}

	if verifyErr != nil {
		return 1
	}
	return 0
}
