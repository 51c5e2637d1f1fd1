package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names accepted by New.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// DB wraps the database connection for one of the two supported drivers.
type DB struct {
	conn   *sql.DB
	driver string
}

// New opens a database connection, applies driver settings, and creates the
// schema. driver must be DriverSQLite or DriverPostgres.
func New(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, driver: driver}

	if driver == DriverSQLite {
		// The modernc driver serializes writes itself, but a single
		// connection keeps transactions from tripping over SQLITE_BUSY.
		conn.SetMaxOpenConns(1)
		for _, pragma := range sqlitePragmas {
			if _, err := conn.Exec(pragma); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
			}
		}
	}

	if err := db.createSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// createSchema creates the three tables and their indexes.
func (db *DB) createSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS voice_time (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			bucket TEXT NOT NULL,
			seconds BIGINT NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (guild_id, user_id, bucket)
		)`,
		`CREATE TABLE IF NOT EXISTS active_sessions (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_voice_time_guild_bucket_seconds
			ON voice_time (guild_id, bucket, seconds DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_voice_time_guild_user
			ON voice_time (guild_id, user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_active_sessions_guild_user
			ON active_sessions (guild_id, user_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// rebind converts ?-style placeholders to the $N form postgres expects.
// Queries are written once in sqlite form and rebound per driver.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
