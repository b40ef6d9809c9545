// Package storetest connects repository tests to a real Postgres.
//
// Tests using it are skipped unless INTEGRATION_TESTS=1 and DATABASE_URL is
// set. Tests from several packages share one database, so they scope their
// rows with fresh ids instead of truncating tables.
package storetest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"learncenter/internal/store"
)

// migrationLock serializes schema setup across test binaries.
const migrationLock = 7305

// Open returns a migrated database, closed when the test ends.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 and DATABASE_URL to run")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrate(ctx, db.Client))
	return db.Client
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	_, file, _, _ := runtime.Caller(0)
	schema, err := os.ReadFile(filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations", "001_init.sql"))
	if err != nil {
		return errors.Wrap(err, "read schema")
	}
	return store.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLock); err != nil {
			return errors.Wrap(err, "lock schema")
		}
		_, err := tx.ExecContext(ctx, string(schema))
		return errors.Wrap(err, "apply schema")
	})
}

// User inserts an active student with a unique phone number and returns its id.
func User(t *testing.T, db *sqlx.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO users (id, full_name, phone_number, role, password_hash)
		VALUES ($1, $2, $3, 'student', '')
	`, id, "Test "+id[:8], "+82-"+id)
	require.NoError(t, err)
	return id
}
