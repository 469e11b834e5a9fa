package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gavelhq/gavel/internal/evidence"
	"github.com/gavelhq/gavel/pkg/types"
)

const defaultAddr = "http://localhost:8080"

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "verify":
		return handleVerify(args[2:], stdout, stderr)
	case "export":
		return handleExport(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

// handleVerify re-runs chain verification against an export file, with
// no access to the producing system.
func handleVerify(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOut := fs.Bool("json", false, "print the raw verification report")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "verify requires <export-file.json>")
		fs.Usage()
		return 2
	}

	// #nosec G304 -- operator-provided export path.
	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	var export types.ChainExport
	if err := json.Unmarshal(raw, &export); err != nil {
		fmt.Fprintln(stderr, "invalid export:", err)
		return 1
	}

	report := evidence.VerifyExport(export)
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else if report.OK {
		fmt.Fprintf(stdout, "chain %s OK (%d packs)\n", report.ChainID, report.Packs)
	} else {
		fmt.Fprintf(stdout, "chain %s BROKEN at index %d: %s\n", report.ChainID, report.BrokenIndex, report.Reason)
	}

	if !report.OK {
		return 1
	}
	return 0
}

// handleExport fetches a chain export from a running gateway and writes
// it to stdout, ready for offline verification.
func handleExport(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOrDefault("GAVEL_ADDR", defaultAddr), "gateway address")
	token := fs.String("token", os.Getenv("GAVEL_TOKEN"), "bearer token")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "export requires <chain-id>")
		fs.Usage()
		return 2
	}

	req, err := http.NewRequest(http.MethodGet, *addr+"/v1/chains/"+fs.Arg(0)+"/export", nil)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "gateway returned %d: %s\n", resp.StatusCode, body)
		return 1
	}

	_, _ = stdout.Write(body)
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: gavel-cli <verify|export> [flags]")
	fmt.Fprintln(w, "  verify <export-file.json>   re-run chain verification offline")
	fmt.Fprintln(w, "  export <chain-id>           fetch a chain export from the gateway")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
