// Command guardcore is the thin, governance-focused CLI over the
// governance core's persisted state: verifying hash chains, sealing
// exports, and decommissioning stuck sessions. None of it can be
// scripted bypass-free — every command reads a human-initiation
// envelope before it touches anything.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the dispatcher, split out from main for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return exitGovernanceViolation
	}

	switch args[1] {
	case "verify-chain":
		return runVerifyChainCmd(args[2:], stdout, stderr)
	case "export-manifest":
		return runExportManifestCmd(args[2:], stdout, stderr)
	case "seal-phase":
		return runSealPhaseCmd(args[2:], stdout, stderr)
	case "decommission":
		return runDecommissionCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitSuccess
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return exitGovernanceViolation
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "guardcore — human-authorized action and evidence governance")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  guardcore <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  verify-chain      Verify the manifest hash chain under an artifact root")
	fmt.Fprintln(w, "  export-manifest   Append and persist a new execution manifest")
	fmt.Fprintln(w, "  seal-phase        Mark an execution's export sealed; a second seal is rejected")
	fmt.Fprintln(w, "  decommission      Force-end a stuck session irreversibly")
	fmt.Fprintln(w, "  help              Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Every command requires --confirm-file pointing at a HumanInitiation")
	fmt.Fprintln(w, "envelope (or - for stdin); none can be scripted bypass-free.")
}
