// Package evidence builds EvidenceBundles from candidate capture
// artifacts (HAR-like traffic archives, screenshots, logs) and chains
// the ExecutionManifests that reference them. Bundle construction is the
// single place redaction is mandatory: an artifact with unredacted
// secrets, an invalid relative path, or a duplicate uniqueness key never
// makes it into a bundle.
package evidence

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sentryline/guardcore/pkg/canonicalize"
	"github.com/sentryline/guardcore/pkg/guarderr"
	"github.com/sentryline/guardcore/pkg/ids"
	"github.com/sentryline/guardcore/pkg/redact"
)

// uniqueKinds lists artifact kinds declared unique per bundle — a second
// artifact of one of these kinds in the same bundle is a construction
// error, not a warning.
var uniqueKinds = map[string]bool{
	"HAR": true,
}

// ArtifactInput is a candidate artifact offered to BuildBundle before
// redaction and hashing. Headers/Body apply to textual/HAR-shaped
// content; RawContent is used as-is for content this system does not
// attempt to redact (e.g. a screenshot).
type ArtifactInput struct {
	RelativePath string
	Kind         string
	Headers      []redact.HARHeader
	Body         string
	RawContent   []byte
}

// EvidenceArtifact is one artifact that survived validation, redaction,
// and hashing, as it exists inside a sealed EvidenceBundle.
type EvidenceArtifact struct {
	RelativePath string `json:"relative_path"`
	Kind         string `json:"kind"`
	SHA256       string `json:"sha256"`
	ResolvedPath string `json:"resolved_path"`
	FinalBytes   []byte `json:"-"`
}

// EvidenceBundle is the immutable, redaction-verified set of artifacts
// captured for one execution.
type EvidenceBundle struct {
	BundleID    string             `json:"bundle_id"`
	ExecutionID string             `json:"execution_id"`
	Artifacts   []EvidenceArtifact `json:"artifacts"`
	BundleHash  string             `json:"bundle_hash"`
}

// BuildBundle validates, redacts, and hashes every candidate under root
// for executionID, then computes bundle_hash over the sorted artifact
// digests. It fails closed: any artifact that is unredactable, has an
// invalid path, or collides on a unique kind aborts the entire bundle —
// there is no partial bundle on error.
func BuildBundle(root, executionID string, candidates []ArtifactInput) (EvidenceBundle, error) {
	if err := ids.ValidateUUIDv4(executionID); err != nil {
		return EvidenceBundle{}, err
	}

	seenUnique := make(map[string]string) // kind -> first relative_path seen
	artifacts := make([]EvidenceArtifact, 0, len(candidates))

	for _, c := range candidates {
		resolved, err := ids.ArtifactPath(root, executionID, c.Kind, c.RelativePath)
		if err != nil {
			return EvidenceBundle{}, err
		}

		if uniqueKinds[c.Kind] {
			if existing, ok := seenUnique[c.Kind]; ok {
				return EvidenceBundle{}, guarderr.New(guarderr.KindGovernanceViolation,
					"kind "+c.Kind+" is declared unique per bundle, already have "+existing)
			}
			seenUnique[c.Kind] = c.RelativePath
		}

		finalBytes, err := redactedBytes(c)
		if err != nil {
			return EvidenceBundle{}, err
		}

		sum := canonicalize.HashBytes(finalBytes)
		artifacts = append(artifacts, EvidenceArtifact{
			RelativePath: c.RelativePath,
			Kind:         c.Kind,
			SHA256:       hex.EncodeToString(sum[:]),
			ResolvedPath: resolved,
			FinalBytes:   finalBytes,
		})
	}

	bundleHash := computeBundleHash(artifacts)

	return EvidenceBundle{
		BundleID:    uuid.Must(uuid.NewRandom()).String(),
		ExecutionID: executionID,
		Artifacts:   artifacts,
		BundleHash:  bundleHash,
	}, nil
}

// redactedBytes applies redaction to textual/HAR content and verifies
// nothing blocklisted survived. Content offered only as RawContent skips
// redaction (there is nothing this system knows how to redact in it) but
// still participates in hashing.
func redactedBytes(c ArtifactInput) ([]byte, error) {
	if c.Headers == nil && c.Body == "" {
		return c.RawContent, nil
	}

	redactedHeaders := redact.RedactHeaders(c.Headers)
	redactedBody := redact.RedactBody(c.Body)

	if err := redact.Verify(redactedHeaders, redactedBody); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, h := range redactedHeaders {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteByte('\n')
	}
	sb.WriteString(redactedBody)
	return []byte(sb.String()), nil
}

// computeBundleHash implements bundle_hash = SHA256(concat(sorted_by_
// relative_path(artifact.sha256))).
func computeBundleHash(artifacts []EvidenceArtifact) string {
	sorted := make([]EvidenceArtifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelativePath < sorted[j].RelativePath })

	var buf strings.Builder
	for _, a := range sorted {
		buf.WriteString(a.SHA256)
	}
	sum := canonicalize.HashBytes([]byte(buf.String()))
	return hex.EncodeToString(sum[:])
}
