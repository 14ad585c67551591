package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func writeConfirmFile(t *testing.T, dir, elementID string) string {
	t.Helper()
	path := filepath.Join(dir, "confirm.json")
	data := []byte(`{"human_initiated":true,"timestamp_millis":1700000000000,"element_id":"` + elementID + `"}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("cannot write confirm file: %v", err)
	}
	return path
}

func TestRun_NoArgsPrintsUsageAndExitsGovernanceViolation(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"guardcore"}, &stdout, &stderr)
	if code != exitGovernanceViolation {
		t.Fatalf("exit code = %d, want %d", code, exitGovernanceViolation)
	}
}

func TestRun_UnknownCommandExitsGovernanceViolation(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"guardcore", "not-a-command"}, &stdout, &stderr)
	if code != exitGovernanceViolation {
		t.Fatalf("exit code = %d, want %d", code, exitGovernanceViolation)
	}
}

func TestVerifyChain_EmptyArtifactRootIsSuccess(t *testing.T) {
	dir := t.TempDir()
	confirmFile := writeConfirmFile(t, dir, "verify-btn")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"guardcore", "verify-chain", "--artifact-root", dir, "--confirm-file", confirmFile}, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("exit code = %d, want %d, stderr=%s", code, exitSuccess, stderr.String())
	}
}

func TestVerifyChain_RejectsWithoutConfirmFile(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := Run([]string{"guardcore", "verify-chain", "--artifact-root", dir, "--confirm-file", ""}, &stdout, &stderr)
	if code != exitPermissionDenied {
		t.Fatalf("exit code = %d, want %d", code, exitPermissionDenied)
	}
}

func TestVerifyChain_RejectsEnvelopeWithFalseHumanInitiated(t *testing.T) {
	dir := t.TempDir()
	confirmFile := filepath.Join(dir, "confirm.json")
	if err := os.WriteFile(confirmFile, []byte(`{"human_initiated":false,"element_id":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := Run([]string{"guardcore", "verify-chain", "--artifact-root", dir, "--confirm-file", confirmFile}, &stdout, &stderr)
	if code != exitPermissionDenied {
		t.Fatalf("exit code = %d, want %d", code, exitPermissionDenied)
	}
}

func TestExportManifestThenVerifyChain_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	confirmFile := writeConfirmFile(t, dir, "export-btn")
	executionID := uuid.Must(uuid.NewRandom()).String()

	var stdout, stderr bytes.Buffer
	code := Run([]string{
		"guardcore", "export-manifest",
		"--artifact-root", dir,
		"--execution-id", executionID,
		"--bundle-hash", "deadbeef",
		"--action-hashes", "h1,h2",
		"--confirm-file", confirmFile,
	}, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("export-manifest exit code = %d, want %d, stderr=%s", code, exitSuccess, stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	code = Run([]string{"guardcore", "verify-chain", "--artifact-root", dir, "--confirm-file", confirmFile}, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("verify-chain exit code = %d, want %d, stderr=%s", code, exitSuccess, stderr.String())
	}
}

func TestVerifyChain_JSONReportOnTamperedManifest(t *testing.T) {
	dir := t.TempDir()
	confirmFile := writeConfirmFile(t, dir, "export-btn")
	executionID := uuid.Must(uuid.NewRandom()).String()

	var stdout, stderr bytes.Buffer
	code := Run([]string{
		"guardcore", "export-manifest",
		"--artifact-root", dir,
		"--execution-id", executionID,
		"--bundle-hash", "deadbeef",
		"--confirm-file", confirmFile,
	}, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("export-manifest exit code = %d, want %d, stderr=%s", code, exitSuccess, stderr.String())
	}

	manifestPath := filepath.Join(dir, "manifests", executionID+".json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	tampered := bytes.Replace(data, []byte("deadbeef"), []byte("0000beef"), 1)
	if err := os.WriteFile(manifestPath, tampered, 0o644); err != nil {
		t.Fatal(err)
	}

	stdout.Reset()
	stderr.Reset()
	code = Run([]string{"guardcore", "verify-chain", "--artifact-root", dir, "--confirm-file", confirmFile, "--json"}, &stdout, &stderr)
	if code != exitIntegrityFailure {
		t.Fatalf("exit code = %d, want %d, stdout=%s", code, exitIntegrityFailure, stdout.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte(`"verified": false`)) {
		t.Fatalf("expected JSON report to show verified:false, got %s", stdout.String())
	}
}

func TestSealPhase_TwiceIsRejected(t *testing.T) {
	dir := t.TempDir()
	confirmFile := writeConfirmFile(t, dir, "seal-btn")
	executionID := uuid.Must(uuid.NewRandom()).String()

	var stdout, stderr bytes.Buffer
	code := Run([]string{"guardcore", "seal-phase", "--artifact-root", dir, "--execution-id", executionID, "--confirm-file", confirmFile}, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("first seal exit code = %d, want %d, stderr=%s", code, exitSuccess, stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	code = Run([]string{"guardcore", "seal-phase", "--artifact-root", dir, "--execution-id", executionID, "--confirm-file", confirmFile}, &stdout, &stderr)
	if code != exitGovernanceViolation {
		t.Fatalf("second seal exit code = %d, want %d, stderr=%s", code, exitGovernanceViolation, stderr.String())
	}
}

func TestDecommission_TwiceIsRejected(t *testing.T) {
	dir := t.TempDir()
	confirmFile := writeConfirmFile(t, dir, "decommission-btn")
	sessionID := uuid.Must(uuid.NewRandom()).String()

	var stdout, stderr bytes.Buffer
	code := Run([]string{"guardcore", "decommission", "--artifact-root", dir, "--session-id", sessionID, "--confirm-file", confirmFile}, &stdout, &stderr)
	if code != exitSuccess {
		t.Fatalf("first decommission exit code = %d, want %d, stderr=%s", code, exitSuccess, stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	code = Run([]string{"guardcore", "decommission", "--artifact-root", dir, "--session-id", sessionID, "--confirm-file", confirmFile}, &stdout, &stderr)
	if code != exitGovernanceViolation {
		t.Fatalf("second decommission exit code = %d, want %d, stderr=%s", code, exitGovernanceViolation, stderr.String())
	}
}
