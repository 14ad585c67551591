// Package ids implements the identifier allowlist and artifact-path
// confinement rules: every execution_id, session_id, confirmation_id,
// submission_id, and manifest_id must be canonical UUIDv4, and every
// evidence artifact path must resolve lexically under a configured root
// with no traversal or encoding tricks. All validation happens before any
// I/O; symlinks are not resolved.
package ids

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sentryline/guardcore/pkg/guarderr"
)

// ValidateUUIDv4 rejects anything that is not a canonical, lowercase
// UUIDv4 (version nibble 4, RFC 4122 variant bits).
func ValidateUUIDv4(id string) error {
	if id == "" {
		return guarderr.New(guarderr.KindIdentifierInvalid, "identifier is empty")
	}
	if id != strings.ToLower(id) {
		return guarderr.New(guarderr.KindIdentifierInvalid, "identifier must be lowercase")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return guarderr.Wrap(guarderr.KindIdentifierInvalid, "not a valid UUID", err)
	}
	if parsed.Version() != 4 {
		return guarderr.New(guarderr.KindIdentifierInvalid, "not a UUIDv4")
	}
	if parsed.Variant() != uuid.RFC4122 {
		return guarderr.New(guarderr.KindIdentifierInvalid, "not an RFC 4122 variant UUID")
	}
	if parsed.String() != id {
		// Rejects non-canonical forms (e.g. braces, urn: prefix) that
		// uuid.Parse accepts but which are not the canonical textual
		// representation this system requires.
		return guarderr.New(guarderr.KindIdentifierInvalid, "not in canonical form")
	}
	return nil
}

// NewV4 mints a fresh canonical UUIDv4 string.
func NewV4() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// forbiddenSubstrings are tokens that, anywhere in a relative path
// (compared case-insensitively), indicate a traversal attempt rather than a real artifact name.
var forbiddenSubstrings = []string{
	"..",
	"%2e%2e", "%2E%2E",
	"%2f", "%2F",
	"%5c", "%5C",
	"\x00",
}

// ValidateRelativePath enforces the artifact relative_path rules: no
// absolute paths, no traversal components (literal or percent-encoded),
// no embedded NUL/CR/LF, and the resolved path must be a strict
// descendant of root. It returns the resolved absolute path on success.
//
// Validation is purely lexical plus a single filesystem-independent
// filepath.Clean/Abs computation — it performs no I/O, so it is safe to
// call before any artifact exists on disk. It does not resolve symlinks,
// so a symlink under root that points outside it is not detected here or
// anywhere else in this package.
func ValidateRelativePath(root, relPath string) (string, error) {
	if relPath == "" {
		return "", guarderr.New(guarderr.KindPathTraversal, "relative_path is empty")
	}
	if strings.ContainsAny(relPath, "\x00\r\n") {
		return "", guarderr.New(guarderr.KindPathTraversal, "relative_path contains control characters")
	}
	if filepath.IsAbs(relPath) || strings.HasPrefix(relPath, "/") || strings.HasPrefix(relPath, "\\") {
		return "", guarderr.New(guarderr.KindPathTraversal, "relative_path must not be absolute")
	}
	if len(relPath) >= 2 && relPath[1] == ':' {
		// Windows drive-letter prefix, e.g. "C:\\foo".
		return "", guarderr.New(guarderr.KindPathTraversal, "relative_path must not carry a drive prefix")
	}
	lower := strings.ToLower(relPath)
	for _, bad := range forbiddenSubstrings {
		if strings.Contains(lower, strings.ToLower(bad)) {
			return "", guarderr.New(guarderr.KindPathTraversal, "relative_path contains a traversal token")
		}
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if part == ".." {
			return "", guarderr.New(guarderr.KindPathTraversal, "relative_path contains a '..' component")
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", guarderr.Wrap(guarderr.KindPathTraversal, "cannot resolve artifact root", err)
	}
	candidate := filepath.Join(absRoot, relPath)
	candidate = filepath.Clean(candidate)

	if !isStrictDescendant(absRoot, candidate) {
		return "", guarderr.New(guarderr.KindPathTraversal, "resolved path escapes artifact root")
	}
	return candidate, nil
}

func isStrictDescendant(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return false // root itself is not a valid artifact path
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ArtifactPath builds the on-disk layout path for an artifact:
// {artifact_root}/{execution_id}/{kind}/{file}, validating every
// component before concatenation.
func ArtifactPath(root, executionID, kind, file string) (string, error) {
	if err := ValidateUUIDv4(executionID); err != nil {
		return "", err
	}
	// Each component is checked on its own first: filepath.Join cleans
	// its result, which would fold a ".." in file into the earlier
	// components before the joined path is validated.
	for _, part := range []string{kind, file} {
		if _, err := ValidateRelativePath(root, part); err != nil {
			return "", err
		}
	}
	rel := filepath.ToSlash(filepath.Join(executionID, kind, file))
	return ValidateRelativePath(root, rel)
}

// ManifestPath builds the manifest persistence path:
// {artifact_root}/manifests/{execution_id}.json
func ManifestPath(root, executionID string) (string, error) {
	if err := ValidateUUIDv4(executionID); err != nil {
		return "", err
	}
	rel := filepath.ToSlash(filepath.Join("manifests", fmt.Sprintf("%s.json", executionID)))
	return ValidateRelativePath(root, rel)
}
