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

// runSealPhaseCmd seals an execution's export, writing a sentinel marker
// alongside its manifest. A second seal attempt finds the marker and is
// rejected with InvalidTransition. No other command reads the marker.
func runSealPhaseCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("seal-phase", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var artifactRoot, executionID, confirmFile string
	cmd.StringVar(&artifactRoot, "artifact-root", "", "Artifact root (REQUIRED)")
	cmd.StringVar(&executionID, "execution-id", "", "UUIDv4 execution id (REQUIRED)")
	cmd.StringVar(&confirmFile, "confirm-file", "", "Path to a HumanInitiation envelope, or - for stdin (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return exitGovernanceViolation
	}
	if artifactRoot == "" || executionID == "" {
		fmt.Fprintln(stderr, "Error: --artifact-root and --execution-id are required")
		return exitGovernanceViolation
	}
	if err := ids.ValidateUUIDv4(executionID); err != nil {
		return fail(stderr, err)
	}

	if _, err := readHumanInitiation(confirmFile); err != nil {
		return fail(stderr, err)
	}

	sealMarker, err := sealMarkerPath(artifactRoot, executionID)
	if err != nil {
		return fail(stderr, err)
	}

	machine := statemachine.NewExportMachine()
	if _, statErr := os.Stat(sealMarker); statErr == nil {
		// Already sealed. The fresh machine starts at DRAFTING and knows
		// nothing of the earlier seal; the marker file is what rejects
		// this attempt.
		_ = machine.Transition(statemachine.ExportSealed, "seal-phase: already sealed")
		return fail(stderr, guarderr.New(guarderr.KindInvalidTransition, "execution is already sealed"))
	}

	if err := machine.Transition(statemachine.ExportSealed, "seal-phase"); err != nil {
		return fail(stderr, err)
	}

	if err := os.MkdirAll(filepath.Dir(sealMarker), 0o755); err != nil {
		return fail(stderr, fmt.Errorf("seal-phase: cannot create manifest directory: %w", err))
	}
	if err := os.WriteFile(sealMarker, []byte(time.Now().UTC().Format(time.RFC3339Nano)+"\n"), 0o644); err != nil {
		return fail(stderr, fmt.Errorf("seal-phase: cannot write seal marker: %w", err))
	}

	fmt.Fprintf(stdout, "Execution %s sealed.\n", executionID)
	return exitSuccess
}

func sealMarkerPath(root, executionID string) (string, error) {
	manifestPath, err := ids.ManifestPath(root, executionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(manifestPath), executionID+".sealed"), nil
}
