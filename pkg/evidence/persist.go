package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sentryline/guardcore/pkg/guarderr"
	"github.com/sentryline/guardcore/pkg/ids"
)

// WriteManifestFile persists m at {root}/manifests/{execution_id}.json,
// the layout spec'd for manifest persistence.
func WriteManifestFile(root string, m ExecutionManifest) error {
	path, err := ids.ManifestPath(root, m.ExecutionID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("evidence: cannot create manifest directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("evidence: cannot marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("evidence: cannot write manifest file: %w", err)
	}
	return nil
}

// ReadManifestFile loads the manifest persisted for executionID under
// root.
func ReadManifestFile(root, executionID string) (ExecutionManifest, error) {
	path, err := ids.ManifestPath(root, executionID)
	if err != nil {
		return ExecutionManifest{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ExecutionManifest{}, fmt.Errorf("evidence: cannot read manifest file: %w", err)
	}
	var m ExecutionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return ExecutionManifest{}, guarderr.Wrap(guarderr.KindAuditIntegrity, "malformed manifest file", err)
	}
	return m, nil
}

// LoadManifestChainFromDir reads every manifest file under
// {root}/manifests, and orders them into chain order by following
// previous_manifest_hash -> manifest_hash linkage starting from the
// genesis manifest (previous_manifest_hash == ""). A manifest whose
// linkage cannot be placed is reported, not silently dropped — an
// orphaned file indicates a broken chain, which is exactly what
// verify-chain exists to catch.
func LoadManifestChainFromDir(root string) ([]ExecutionManifest, error) {
	dir := filepath.Join(root, "manifests")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("evidence: cannot list manifest directory: %w", err)
	}

	byPrevHash := make(map[string]ExecutionManifest)
	var genesis []ExecutionManifest
	total := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("evidence: cannot read %s: %w", entry.Name(), err)
		}
		var m ExecutionManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, guarderr.Wrap(guarderr.KindAuditIntegrity, "malformed manifest file "+entry.Name(), err)
		}
		total++
		if m.PreviousManifestHash == "" {
			genesis = append(genesis, m)
			continue
		}
		byPrevHash[m.PreviousManifestHash] = m
	}

	if len(genesis) == 0 {
		if len(byPrevHash) == 0 {
			return nil, nil
		}
		return nil, guarderr.New(guarderr.KindHashChainMismatch, "no genesis manifest found among persisted files")
	}
	if len(genesis) > 1 {
		return nil, guarderr.New(guarderr.KindHashChainMismatch, "more than one genesis manifest found among persisted files")
	}

	chain := []ExecutionManifest{genesis[0]}
	cursor := genesis[0].ManifestHash
	for {
		next, ok := byPrevHash[cursor]
		if !ok {
			break
		}
		chain = append(chain, next)
		cursor = next.ManifestHash
	}
	if len(chain) != total {
		return nil, guarderr.New(guarderr.KindHashChainMismatch, "persisted manifest(s) could not be placed in the chain")
	}
	return chain, nil
}
