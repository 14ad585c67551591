package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/sentryline/guardcore/pkg/evidence"
	"github.com/sentryline/guardcore/pkg/ids"
)

// runExportManifestCmd appends a new ExecutionManifest to the on-disk
// chain under --artifact-root and persists it at
// {artifact_root}/manifests/{execution_id}.json. The previous manifest
// in the chain is whatever chain reconstruction from disk finds linked
// last — manifest generation is mandatory here, never best-effort,
// since hash chain integrity is load-bearing (per the source's own
// noted inconsistency on this point).
func runExportManifestCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export-manifest", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var artifactRoot, executionID, bundleHash, actionHashesCSV, confirmFile string
	cmd.StringVar(&artifactRoot, "artifact-root", "", "Artifact root containing manifests/ (REQUIRED)")
	cmd.StringVar(&executionID, "execution-id", "", "UUIDv4 execution id (REQUIRED)")
	cmd.StringVar(&bundleHash, "bundle-hash", "", "Evidence bundle hash to record (REQUIRED)")
	cmd.StringVar(&actionHashesCSV, "action-hashes", "", "Comma-separated ordered action hashes")
	cmd.StringVar(&confirmFile, "confirm-file", "", "Path to a HumanInitiation envelope, or - for stdin (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return exitGovernanceViolation
	}
	if artifactRoot == "" || executionID == "" || bundleHash == "" {
		fmt.Fprintln(stderr, "Error: --artifact-root, --execution-id, and --bundle-hash are required")
		return exitGovernanceViolation
	}
	if err := ids.ValidateUUIDv4(executionID); err != nil {
		return fail(stderr, err)
	}

	if _, err := readHumanInitiation(confirmFile); err != nil {
		return fail(stderr, err)
	}

	var actionHashes []string
	if actionHashesCSV != "" {
		actionHashes = strings.Split(actionHashesCSV, ",")
	}

	existing, err := evidence.LoadManifestChainFromDir(artifactRoot)
	if err != nil {
		return fail(stderr, err)
	}

	store := evidence.NewManifestStore()
	store.LoadFrom(existing)

	manifest, err := store.Append(executionID, bundleHash, actionHashes)
	if err != nil {
		return fail(stderr, err)
	}

	if err := evidence.WriteManifestFile(artifactRoot, manifest); err != nil {
		return fail(stderr, err)
	}

	fmt.Fprintf(stdout, "Manifest %s appended for execution %s (manifest_hash=%s)\n",
		manifest.ManifestID, manifest.ExecutionID, manifest.ManifestHash)
	return exitSuccess
}
