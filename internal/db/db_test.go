package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{in: "", want: DialectPostgres},
		{in: "postgres", want: DialectPostgres},
		{in: "PGX", want: DialectPostgres},
		{in: "sqlite", want: DialectSQLite},
		{in: " sqlite3 ", want: DialectSQLite},
		{in: "mysql", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"file:/tmp/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		sqliteDSN("/tmp/x.db"))
	assert.Equal(t,
		"file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		sqliteDSN("sqlite://file:x.db?mode=rwc"))
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, Options{Dialect: DialectSQLite, DSN: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, DialectSQLite, conn.Dialect())
	require.NoError(t, conn.Migrate(ctx))

	v, err := conn.Version(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	for _, table := range []string{"users", "tags", "todos", "todo_tags"} {
		var n int
		err := conn.QueryRowContext(ctx,
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}

	require.NoError(t, conn.Rollback(ctx))
	v, err = conn.Version(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)

	// Migrating twice is a no-op.
	require.NoError(t, conn.Migrate(ctx))
	require.NoError(t, conn.Migrate(ctx))
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, Options{Dialect: DialectSQLite, DSN: filepath.Join(t.TempDir(), "fk.db")})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Migrate(ctx))

	_, err = conn.ExecContext(ctx, `
		INSERT INTO todos (id, title, user_id, created_at, updated_at)
		VALUES ('t1', 'orphan', 'missing-user', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}
