// Package db owns the database connection lifecycle and schema migrations for
// PostgreSQL and SQLite.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Dialect represents the database dialect.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a driver name from configuration to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", s)
	}
}

// Options configures Open.
type Options struct {
	Dialect  Dialect
	DSN      string
	MaxConns int32
	MinConns int32
}

// DB wraps a *sql.DB together with its dialect. For PostgreSQL the handle is
// backed by a pgx pool.
type DB struct {
	*sql.DB
	dialect Dialect
	pool    *pgxpool.Pool
}

// Open connects to the database described by opts and verifies the connection.
func Open(ctx context.Context, opts Options) (*DB, error) {
	switch opts.Dialect {
	case DialectPostgres:
		return openPostgres(ctx, opts)
	case DialectSQLite:
		return openSQLite(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}
}

func openPostgres(ctx context.Context, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return &DB{DB: stdlib.OpenDBFromPool(pool), dialect: DialectPostgres, pool: pool}, nil
}

func openSQLite(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every :memory: connection is a separate database.
	if strings.Contains(dsn, ":memory:") {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &DB{DB: conn, dialect: DialectSQLite}, nil
}

// sqliteDSN appends the per-connection pragmas the schema relies on.
func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// Dialect returns the database dialect.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Close closes the handle and, for PostgreSQL, the underlying pool.
func (d *DB) Close() error {
	err := d.DB.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

func (d *DB) withGoose(fn func(dir string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	dialect := "postgres"
	if d.dialect == DialectSQLite {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return fn("migrations/" + string(d.dialect))
}

// Migrate applies all pending migrations.
func (d *DB) Migrate(ctx context.Context) error {
	return d.withGoose(func(dir string) error {
		if err := goose.UpContext(ctx, d.DB, dir); err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		return nil
	})
}

// Rollback reverts the most recent migration.
func (d *DB) Rollback(ctx context.Context) error {
	return d.withGoose(func(dir string) error {
		if err := goose.DownContext(ctx, d.DB, dir); err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		return nil
	})
}

// Version returns the current schema version.
func (d *DB) Version(ctx context.Context) (int64, error) {
	var v int64
	err := d.withGoose(func(string) error {
		var err error
		v, err = goose.GetDBVersionContext(ctx, d.DB)
		return err
	})
	return v, err
}
