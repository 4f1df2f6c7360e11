// Package store persists counter readings in an append-only samples table,
// behind either the sqlite3 driver (local file, the default) or the pgx
// driver (shared Postgres). SQL is written with $n placeholders in order of
// first appearance, which both drivers accept.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"

	"github.com/BemreSTR/net-usage/migrations"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store wraps a sql.DB connection and exposes the sample queries.
type Store struct {
	conn   *sql.DB
	driver string
}

// Open connects, pings, and applies any pending embedded migrations.
// For sqlite the DSN is a file path: "~" expands to the home directory and
// the parent directory is created if missing. For pgx it is a Postgres DSN
// passed through as given.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		path, err := expandPath(dsn)
		if err != nil {
			return nil, err
		}
		dsn = sqliteDSN(path)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported db driver %q (use %s or %s)", driver, DriverSQLite, DriverPostgres)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single connection keeps WAL writers serialized and makes
		// in-memory databases behave like one database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	if err := runMigrations(ctx, conn, driver); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{conn: conn, driver: driver}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Ready validates connectivity and migration state.
func (s *Store) Ready(ctx context.Context) error {
	if s == nil || s.conn == nil {
		return errors.New("store is not open")
	}
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	applied, err := appliedMigrations(ctx, s.conn)
	if err != nil {
		return err
	}
	missing := make([]string, 0)
	for _, name := range embeddedMigrations() {
		if _, ok := applied[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("pending migrations: %s", strings.Join(missing, ","))
	}
	return nil
}

func expandPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("database path is empty")
	}
	if path == ":memory:" {
		return path, nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
	}
	return path, nil
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
}

func runMigrations(ctx context.Context, conn *sql.DB, driver string) error {
	if _, err := conn.ExecContext(ctx, migrationsTableDDL(driver)); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}
	for _, version := range embeddedMigrations() {
		if _, ok := applied[version]; ok {
			continue
		}
		contents, err := migrations.Files.ReadFile(version)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		if err := applyMigration(ctx, conn, version, string(contents)); err != nil {
			return err
		}
	}
	return nil
}

func migrationsTableDDL(driver string) string {
	if driver == DriverPostgres {
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
                version TEXT PRIMARY KEY,
                applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`
	}
	return `CREATE TABLE IF NOT EXISTS schema_migrations (
                version TEXT PRIMARY KEY,
                applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`
}

func appliedMigrations(ctx context.Context, conn *sql.DB) (map[string]struct{}, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	return applied, nil
}

func embeddedMigrations() []string {
	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func applyMigration(ctx context.Context, conn *sql.DB, version, body string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

// withWriteRetry retries sqlite write contention with exponential backoff.
// Anything that is not a busy/locked error aborts the retry loop.
func (s *Store) withWriteRetry(ctx context.Context, op func() error) error {
	if s.driver != DriverSQLite {
		return op()
	}
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxInterval(250*time.Millisecond),
		backoff.WithMaxElapsedTime(5*time.Second),
	)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

func isBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}
