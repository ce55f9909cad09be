// Package db opens the SQL database that backs the position store.
package db

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names a supported database/sql driver.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite3"
	DialectMySQL  Dialect = "mysql"
)

var (
	db      *sql.DB
	dialect Dialect
	initErr error
	once    sync.Once
)

// ParseDialect maps a driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(name) {
	case DialectSQLite, "sqlite", "":
		return DialectSQLite, nil
	case DialectMySQL:
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// InitDB opens the database connection once and runs schema migrations.
// A failed initialization is remembered until ResetDB.
func InitDB(d Dialect, dsn string) (*sql.DB, error) {
	once.Do(func() {
		initErr = open(d, dsn)
	})

	if initErr != nil {
		return nil, initErr
	}
	return db, nil
}

func open(d Dialect, dsn string) error {
	conn, err := sql.Open(string(d), dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if d == DialectSQLite {
		// Enable WAL mode for better concurrent access
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := runMigrations(conn, d); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db = conn
	dialect = d
	return nil
}

// GetDB returns the initialized database connection.
func GetDB() *sql.DB {
	return db
}

// GetDialect returns the dialect InitDB was called with.
func GetDialect() Dialect {
	return dialect
}

func runMigrations(db *sql.DB, d Dialect) error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		room_id TEXT NOT NULL,
		pos_key TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, pos_key)
	)`
	if d == DialectMySQL {
		schema = `
	CREATE TABLE IF NOT EXISTS positions (
		room_id VARCHAR(64) NOT NULL,
		pos_key VARCHAR(64) NOT NULL,
		x INT NOT NULL,
		y INT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, pos_key)
	)`
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// CloseDB closes the database connection.
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// ResetDB resets the singleton for testing purposes.
func ResetDB() {
	if db != nil {
		db.Close()
	}
	once = sync.Once{}
	db = nil
	dialect = ""
	initErr = nil
}

// NewTestDB creates a new in-memory SQLite database for testing.
// This bypasses the singleton pattern and creates a fresh database each time.
func NewTestDB() (*sql.DB, error) {
	testDB, err := sql.Open(string(DialectSQLite), ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	// Every pooled connection would get its own empty :memory: database.
	testDB.SetMaxOpenConns(1)

	if err := runMigrations(testDB, DialectSQLite); err != nil {
		testDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return testDB, nil
}
