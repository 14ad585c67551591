// Package store implements durable persistence for the audit chain and
// manifest chain: SQLite stores audit entries and Postgres stores
// manifests. Both persist exactly what pkg/audit and
// pkg/evidence already computed — this package never recomputes a hash,
// it only stores and reloads the entries a Log/ManifestStore produced.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sentryline/guardcore/pkg/audit"
)

// SQLiteAuditStore persists one subsystem's audit entries to a local
// SQLite database, in append order, for durability across process
// restarts.
type SQLiteAuditStore struct {
	db *sql.DB
}

// OpenSQLiteAuditStore opens (or creates) path and ensures the schema
// exists.
func OpenSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite audit store: %w", err)
	}
	s := &SQLiteAuditStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteAuditStore) migrate() error {
	_, err := s.db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS audit_entries (
			subsystem       TEXT NOT NULL,
			seq             INTEGER NOT NULL,
			entry_id        TEXT NOT NULL,
			timestamp_utc   TEXT NOT NULL,
			actor_id        TEXT NOT NULL,
			role            TEXT NOT NULL,
			action          TEXT NOT NULL,
			outcome         TEXT NOT NULL,
			refs            TEXT NOT NULL,
			previous_hash   TEXT NOT NULL,
			entry_hash      TEXT NOT NULL,
			PRIMARY KEY (subsystem, seq)
		)`)
	return err
}

// Append writes the next entry for subsystem at position seq (0-based,
// matching the in-memory Log's append order). It does not validate chain
// linkage itself — pkg/audit already guarantees the Entry it hands this
// store is correctly linked; this store's job is durability, not
// integrity computation.
func (s *SQLiteAuditStore) Append(ctx context.Context, subsystem string, seq int, e audit.Entry) error {
	refsJSON, err := json.Marshal(e.Refs)
	if err != nil {
		return fmt.Errorf("store: marshal refs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (subsystem, seq, entry_id, timestamp_utc, actor_id, role, action, outcome, refs, previous_hash, entry_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subsystem, seq, e.EntryID, e.TimestampUTC, e.ActorID, e.Role, e.Action, string(e.Outcome), string(refsJSON), e.PreviousHash, e.EntryHash)
	if err != nil {
		return fmt.Errorf("store: insert audit entry: %w", err)
	}
	return nil
}

// Load reconstructs the full ordered entry list for subsystem, for
// startup replay into a fresh in-memory audit.Log.
func (s *SQLiteAuditStore) Load(ctx context.Context, subsystem string) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, timestamp_utc, actor_id, role, action, outcome, refs, previous_hash, entry_hash
		FROM audit_entries WHERE subsystem = ? ORDER BY seq ASC`, subsystem)
	if err != nil {
		return nil, fmt.Errorf("store: query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var outcome, refsJSON string
		if err := rows.Scan(&e.EntryID, &e.TimestampUTC, &e.ActorID, &e.Role, &e.Action, &outcome, &refsJSON, &e.PreviousHash, &e.EntryHash); err != nil {
			return nil, fmt.Errorf("store: scan audit entry: %w", err)
		}
		e.Outcome = audit.Outcome(outcome)
		if err := json.Unmarshal([]byte(refsJSON), &e.Refs); err != nil {
			return nil, fmt.Errorf("store: unmarshal refs: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}
