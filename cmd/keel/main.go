// Command keel operates on event streams from the outside: inspecting
// stream heads, re-verifying hash chains, exporting signed bundles, and
// preparing SQL schemas. Storage is selected through KEEL_* environment
// variables, optionally overlaid by a named profile.
package main

import (
	"fmt"
	"io"
	"os"
)

const version = "1.0.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "head":
		return runHeadCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "check-bundle":
		return runCheckBundleCmd(args[2:], stdout, stderr)
	case "init-schema":
		return runInitSchemaCmd(args[2:], stdout, stderr)
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "keel %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%skeel %s%s\n", ColorBold+ColorBlue, version, ColorReset)
	fmt.Fprintf(w, "%sAppend-only event store with hash-chain integrity.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  keel <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "STREAMS")
	printCommand(w, "head", "Show the current version and head hash of a stream")
	printCommand(w, "verify", "Walk a stream and re-verify its hash chain")

	printSection(w, "BUNDLES")
	printCommand(w, "export", "Export a verified stream as a signed bundle")
	printCommand(w, "check-bundle", "Verify a bundle file (--bundle, --pub)")

	printSection(w, "ADMINISTRATION")
	printCommand(w, "init-schema", "Print or apply the SQL schema (--apply)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}
