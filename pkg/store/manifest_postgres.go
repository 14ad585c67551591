package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/sentryline/guardcore/pkg/evidence"
)

// PostgresManifestStore persists the ExecutionManifest chain to a shared
// Postgres database, so verify_chain can run against the durable record
// rather than only the in-memory ManifestStore of whichever process
// built it.
type PostgresManifestStore struct {
	db *sql.DB
}

// NewPostgresManifestStore wraps an already-open *sql.DB. Taking the
// handle rather than a DSN keeps this type testable against a mocked
// driver (go-sqlmock) the same way the caller would test any other
// *sql.DB-backed store.
func NewPostgresManifestStore(db *sql.DB) *PostgresManifestStore {
	return &PostgresManifestStore{db: db}
}

// OpenPostgresManifestStore connects to dsn, ensures the schema exists,
// and returns a ready store.
func OpenPostgresManifestStore(dsn string) (*PostgresManifestStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres manifest store: %w", err)
	}
	s := NewPostgresManifestStore(db)
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresManifestStore) migrate() error {
	_, err := s.db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS execution_manifests (
			seq                     BIGSERIAL PRIMARY KEY,
			manifest_id             TEXT NOT NULL UNIQUE,
			execution_id            TEXT NOT NULL,
			bundle_hash             TEXT NOT NULL,
			action_hashes           JSONB NOT NULL,
			previous_manifest_hash  TEXT NOT NULL,
			manifest_hash           TEXT NOT NULL
		)`)
	return err
}

// Append durably records m at the next chain position.
func (s *PostgresManifestStore) Append(ctx context.Context, m evidence.ExecutionManifest) error {
	actionHashesJSON, err := json.Marshal(m.ActionHashes)
	if err != nil {
		return fmt.Errorf("store: marshal action_hashes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_manifests (manifest_id, execution_id, bundle_hash, action_hashes, previous_manifest_hash, manifest_hash)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ManifestID, m.ExecutionID, m.BundleHash, string(actionHashesJSON), m.PreviousManifestHash, m.ManifestHash)
	if err != nil {
		return fmt.Errorf("store: insert manifest: %w", err)
	}
	return nil
}

// LoadChain reconstructs the full manifest chain in append order, for
// verify_chain or process restart replay.
func (s *PostgresManifestStore) LoadChain(ctx context.Context) ([]evidence.ExecutionManifest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT manifest_id, execution_id, bundle_hash, action_hashes, previous_manifest_hash, manifest_hash
		FROM execution_manifests ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query manifests: %w", err)
	}
	defer rows.Close()

	var manifests []evidence.ExecutionManifest
	for rows.Next() {
		var m evidence.ExecutionManifest
		var actionHashesJSON string
		if err := rows.Scan(&m.ManifestID, &m.ExecutionID, &m.BundleHash, &actionHashesJSON, &m.PreviousManifestHash, &m.ManifestHash); err != nil {
			return nil, fmt.Errorf("store: scan manifest: %w", err)
		}
		if err := json.Unmarshal([]byte(actionHashesJSON), &m.ActionHashes); err != nil {
			return nil, fmt.Errorf("store: unmarshal action_hashes: %w", err)
		}
		manifests = append(manifests, m)
	}
	return manifests, rows.Err()
}

// Close releases the underlying database handle.
func (s *PostgresManifestStore) Close() error {
	return s.db.Close()
}
