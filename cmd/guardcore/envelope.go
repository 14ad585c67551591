package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// HumanInitiation is the interactive envelope every governed CLI command
// requires before it does anything. human_initiated must be literally
// true; any other value, including a truthy-looking non-boolean, is
// rejected rather than coerced.
type HumanInitiation struct {
	HumanInitiated  bool   `json:"human_initiated"`
	TimestampMillis int64  `json:"timestamp_millis"`
	ElementID       string `json:"element_id"`
}

// readHumanInitiation loads and validates the envelope from path, or
// from stdin if path is "-".
func readHumanInitiation(path string) (HumanInitiation, error) {
	if path == "" {
		return HumanInitiation{}, guarderr.New(guarderr.KindHumanConfirmationRequired, "--confirm-file is required")
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return HumanInitiation{}, guarderr.Wrap(guarderr.KindHumanConfirmationRequired, "cannot open confirm file", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return HumanInitiation{}, guarderr.Wrap(guarderr.KindHumanConfirmationRequired, "cannot read confirm file", err)
	}

	var env HumanInitiation
	if err := json.Unmarshal(data, &env); err != nil {
		return HumanInitiation{}, guarderr.Wrap(guarderr.KindHumanConfirmationRequired, "confirm file is not valid JSON", err)
	}
	if !env.HumanInitiated {
		return HumanInitiation{}, guarderr.New(guarderr.KindHumanConfirmationRequired, "human_initiated must be literally true")
	}
	if env.ElementID == "" {
		return HumanInitiation{}, guarderr.New(guarderr.KindHumanConfirmationRequired, "element_id is required")
	}
	return env, nil
}

// Exit codes, per the CLI/envelope surface: 0 success; 2 governance
// violation; 3 integrity/verification failure; 4 permission denied; 5
// expired/replayed token.
const (
	exitSuccess             = 0
	exitGovernanceViolation = 2
	exitIntegrityFailure    = 3
	exitPermissionDenied    = 4
	exitExpiredOrReplayed   = 5
)

// exitCodeFor classifies err into the CLI's closed exit-code space.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	k, ok := guarderr.KindOf(err)
	if !ok {
		return exitGovernanceViolation
	}
	switch k {
	case guarderr.KindTokenExpired, guarderr.KindReplayAttempt, guarderr.KindTokenTampered:
		return exitExpiredOrReplayed
	case guarderr.KindInsufficientPermission, guarderr.KindHumanConfirmationRequired:
		return exitPermissionDenied
	case guarderr.KindAuditIntegrity, guarderr.KindHashChainMismatch, guarderr.KindPathTraversal,
		guarderr.KindUnredactedEvidence, guarderr.KindIdentifierInvalid:
		return exitIntegrityFailure
	default:
		return exitGovernanceViolation
	}
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCodeFor(err)
}
