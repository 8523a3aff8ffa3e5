// Package dbtest opens migrated throwaway SQLite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/birlikkoshan/todohub/internal/db"
)

// Open returns a migrated SQLite database that is closed when the test ends.
func Open(t testing.TB) *db.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Options{
		Dialect: db.DialectSQLite,
		DSN:     filepath.Join(t.TempDir(), "todohub.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.Migrate(ctx))
	return conn
}
