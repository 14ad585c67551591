package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sentryline/guardcore/pkg/guarderr"
	"github.com/sentryline/guardcore/pkg/ids"
	"github.com/sentryline/guardcore/pkg/statemachine"
)

// runDecommissionCmd force-ends a stuck session irreversibly. Unlike
// seal-phase, which applies to an export, decommission applies to a
// session that never reached a terminal state on its own (a crashed
// client, an abandoned review) — it drives the session machine straight
// to ENDED and records a marker so the session can never be resumed.
func runDecommissionCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("decommission", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var artifactRoot, sessionID, confirmFile string
	cmd.StringVar(&artifactRoot, "artifact-root", "", "Artifact root (REQUIRED)")
	cmd.StringVar(&sessionID, "session-id", "", "UUIDv4 session id (REQUIRED)")
	cmd.StringVar(&confirmFile, "confirm-file", "", "Path to a HumanInitiation envelope, or - for stdin (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return exitGovernanceViolation
	}
	if artifactRoot == "" || sessionID == "" {
		fmt.Fprintln(stderr, "Error: --artifact-root and --session-id are required")
		return exitGovernanceViolation
	}
	if err := ids.ValidateUUIDv4(sessionID); err != nil {
		return fail(stderr, err)
	}

	if _, err := readHumanInitiation(confirmFile); err != nil {
		return fail(stderr, err)
	}

	marker := decommissionMarkerPath(artifactRoot, sessionID)
	if _, statErr := os.Stat(marker); statErr == nil {
		return fail(stderr, guarderr.New(guarderr.KindInvalidTransition, "session is already decommissioned"))
	}

	machine := statemachine.NewSessionMachine()
	if err := machine.Transition(statemachine.SessionEnded, "decommission"); err != nil {
		return fail(stderr, err)
	}

	if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
		return fail(stderr, fmt.Errorf("decommission: cannot create sessions directory: %w", err))
	}
	if err := os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339Nano)+"\n"), 0o644); err != nil {
		return fail(stderr, fmt.Errorf("decommission: cannot write decommission marker: %w", err))
	}

	fmt.Fprintf(stdout, "Session %s decommissioned.\n", sessionID)
	return exitSuccess
}

func decommissionMarkerPath(root, sessionID string) string {
	return filepath.Join(root, "sessions", sessionID+".decommissioned")
}
