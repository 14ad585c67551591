package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryline/guardcore/pkg/evidence"
)

func TestPostgresManifestStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresManifestStore(db)

	m := evidence.ExecutionManifest{
		ManifestID:           "m1",
		ExecutionID:          "e1",
		BundleHash:           "bh1",
		ActionHashes:         []string{"h1", "h2"},
		PreviousManifestHash: "",
		ManifestHash:         "mh1",
	}

	mock.ExpectExec(`INSERT INTO execution_manifests`).
		WithArgs(m.ManifestID, m.ExecutionID, m.BundleHash, `["h1","h2"]`, m.PreviousManifestHash, m.ManifestHash).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Append(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManifestStore_LoadChain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresManifestStore(db)

	rows := sqlmock.NewRows([]string{"manifest_id", "execution_id", "bundle_hash", "action_hashes", "previous_manifest_hash", "manifest_hash"}).
		AddRow("m1", "e1", "bh1", `["h1"]`, "", "mh1").
		AddRow("m2", "e2", "bh2", `["h2"]`, "mh1", "mh2")

	mock.ExpectQuery(`SELECT manifest_id, execution_id, bundle_hash, action_hashes, previous_manifest_hash, manifest_hash\s+FROM execution_manifests`).
		WillReturnRows(rows)

	chain, err := s.LoadChain(context.Background())
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "mh1", chain[0].ManifestHash)
	assert.Equal(t, []string{"h2"}, chain[1].ActionHashes)
	require.NoError(t, mock.ExpectationsWereMet())
}
