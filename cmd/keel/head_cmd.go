package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// runHeadCmd implements `keel head`.
//
// Reports the newest stored item of a stream: its position and event
// hash, which anchor both optimistic appends and chain verification.
//
// Exit codes:
//
//	0 = head found
//	1 = stream not found or backend failure
//	2 = usage or configuration error
func runHeadCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("head", flag.ContinueOnError)
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

	last, err := rs.LastItem(ctx, streamID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if last == nil {
		_, _ = fmt.Fprintf(stderr, "Stream %s not found\n", streamID)
		return 1
	}

	if jsonOutput {
		result := map[string]any{
			"stream":    streamID.String(),
			"version":   last.Position,
			"topic":     last.Topic,
			"head_hash": last.EventHash,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Stream:  %s\n", streamID)
	_, _ = fmt.Fprintf(stdout, "Version: %d\n", last.Position)
	_, _ = fmt.Fprintf(stdout, "Topic:   %s\n", last.Topic)
	_, _ = fmt.Fprintf(stdout, "Head:    %s\n", last.EventHash)
	return 0
}
