package evidence

import (
	"sync"

	"github.com/google/uuid"

	"github.com/sentryline/guardcore/pkg/canonicalize"
	"github.com/sentryline/guardcore/pkg/guarderr"
)

// ExecutionManifest ties one execution's bundle to the ordered list of
// action hashes performed during it, and to the manifest before it in
// this store's chain.
type ExecutionManifest struct {
	ManifestID           string   `json:"manifest_id"`
	ExecutionID          string   `json:"execution_id"`
	BundleHash           string   `json:"bundle_hash"`
	ActionHashes         []string `json:"action_hashes"`
	PreviousManifestHash string   `json:"previous_manifest_hash"` // "" for the first
	ManifestHash         string   `json:"manifest_hash"`
}

// manifestCanonicalFields is the field ordering hashed to produce
// ManifestHash; previous_manifest_hash is included so the chain linkage
// itself is covered.
type manifestCanonicalFields struct {
	ManifestID           string   `json:"manifest_id"`
	ExecutionID          string   `json:"execution_id"`
	BundleHash           string   `json:"bundle_hash"`
	ActionHashes         []string `json:"action_hashes"`
	PreviousManifestHash string   `json:"previous_manifest_hash"`
}

func computeManifestHash(m ExecutionManifest) (string, error) {
	fields := manifestCanonicalFields{
		ManifestID:           m.ManifestID,
		ExecutionID:          m.ExecutionID,
		BundleHash:           m.BundleHash,
		ActionHashes:         m.ActionHashes,
		PreviousManifestHash: m.PreviousManifestHash,
	}
	return canonicalize.HashHex(fields)
}

// ManifestStore is an append-only, hash-chained sequence of
// ExecutionManifests, one per execution. Building a manifest never
// mutates the bundle it references — EvidenceBundle.FinalBytes is read,
// never rewritten, by everything in this package.
type ManifestStore struct {
	mu        sync.Mutex
	manifests []ExecutionManifest
}

// NewManifestStore constructs an empty chain.
func NewManifestStore() *ManifestStore {
	return &ManifestStore{}
}

// Append builds the next ExecutionManifest in the chain for executionID,
// referencing bundleHash and actionHashes, and links it to the previous
// manifest's hash. Calling Append twice with identical bundleHash and
// actionHashes (but a fresh manifest_id, since identity is not content)
// produces manifests with identical bundle_hash/action_hashes/
// previous_manifest_hash — the determinism guarantee applies to the
// content fields, not to manifest_id, which is always freshly minted.
func (s *ManifestStore) Append(executionID, bundleHash string, actionHashes []string) (ExecutionManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prevHash string
	if n := len(s.manifests); n > 0 {
		prevHash = s.manifests[n-1].ManifestHash
	}

	hashes := make([]string, len(actionHashes))
	copy(hashes, actionHashes)

	manifest := ExecutionManifest{
		ManifestID:           uuid.Must(uuid.NewRandom()).String(),
		ExecutionID:          executionID,
		BundleHash:           bundleHash,
		ActionHashes:         hashes,
		PreviousManifestHash: prevHash,
	}

	hash, err := computeManifestHash(manifest)
	if err != nil {
		return ExecutionManifest{}, guarderr.Wrap(guarderr.KindAuditIntegrity, "failed to compute manifest hash", err)
	}
	manifest.ManifestHash = hash

	s.manifests = append(s.manifests, manifest)
	return manifest, nil
}

// LoadFrom replaces the store's contents with a previously persisted
// chain, for restart replay from durable storage (pkg/store). It does
// not re-verify the chain; call VerifyChain afterward if that assurance
// is needed.
func (s *ManifestStore) LoadFrom(manifests []ExecutionManifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests = append([]ExecutionManifest(nil), manifests...)
}

// Snapshot returns an ordered copy of every manifest appended so far.
func (s *ManifestStore) Snapshot() []ExecutionManifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExecutionManifest, len(s.manifests))
	copy(out, s.manifests)
	return out
}

// VerifyChain recomputes hashes and linkage across [start, end) of the
// stored manifests (end<0 means through the last one) and reports the
// first broken link, if any. A single byte change anywhere in a
// manifest's hashed fields is detectable because the recomputed hash
// will no longer match ManifestHash; a changed ManifestHash in turn
// breaks the next manifest's previous_manifest_hash linkage.
func (s *ManifestStore) VerifyChain(start, end int) (ok bool, firstBadIndex int, reason string) {
	snapshot := s.Snapshot()
	if end < 0 || end > len(snapshot) {
		end = len(snapshot)
	}
	if start < 0 {
		start = 0
	}

	var prevHash string
	if start > 0 {
		prevHash = snapshot[start-1].ManifestHash
	}

	for i := start; i < end; i++ {
		m := snapshot[i]
		if m.PreviousManifestHash != prevHash {
			return false, i, "previous_manifest_hash does not match prior manifest's manifest_hash"
		}
		want, err := computeManifestHash(m)
		if err != nil {
			return false, i, "failed to recompute manifest hash: " + err.Error()
		}
		if want != m.ManifestHash {
			return false, i, "manifest_hash mismatch: manifest was tampered with"
		}
		prevHash = m.ManifestHash
	}
	return true, -1, ""
}
