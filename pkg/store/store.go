// Package store persists panel records in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// registers the sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

const sqlDriverName = "sqlite3"

// txLocking makes every transaction take the write lock when it begins, so a
// read followed by an update inside one Tx cannot interleave with another writer.
const txLocking = "immediate"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries holds every statement; it runs against either the pool or a transaction.
type queries struct {
	db dbtx
}

type Store struct {
	*queries
	db *sql.DB
}

// Tx is a Store view bound to one open transaction.
type Tx struct {
	*queries
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	return OpenDSN(fmt.Sprintf("file:%s?_txlock=%s&_busy_timeout=5000", path, txLocking))
}

// OpenDSN opens a database from a raw go-sqlite3 connection string.
func OpenDSN(dsn string) (*Store, error) {
	db, err := sql.Open(sqlDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer at a time; sqlite serialises writes anyway
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{queries: &queries{db: db}, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Tx runs fn inside one transaction. The transaction is rolled back when fn
// returns an error and committed otherwise.
func (s *Store) Tx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Tx{queries: &queries{db: sqlTx}}); err != nil {
		// a cancelled context has already rolled the transaction back
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback failed: %v", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func createSchema(db *sql.DB) error {
	statements := []string{`
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    scheme TEXT NOT NULL DEFAULT 'https',
    fqdn TEXT NOT NULL,
    daemon_port INTEGER NOT NULL DEFAULT 8080,
    daemon_token TEXT NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS nests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS eggs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    nest_id INTEGER NOT NULL REFERENCES nests(id),
    name TEXT NOT NULL,
    startup TEXT NOT NULL DEFAULT '',
    images TEXT NOT NULL DEFAULT '[]'
)`, `
CREATE TABLE IF NOT EXISTS egg_variables (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    egg_id INTEGER NOT NULL REFERENCES eggs(id),
    env_variable TEXT NOT NULL,
    default_value TEXT NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS egg_rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    eggs TEXT NOT NULL DEFAULT '[]',
    allowed_eggs TEXT NOT NULL DEFAULT '[]'
)`, `
CREATE TABLE IF NOT EXISTS allocations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id INTEGER NOT NULL REFERENCES nodes(id),
    ip TEXT NOT NULL,
    port INTEGER NOT NULL,
    server_id INTEGER NULL,
    UNIQUE(node_id, ip, port)
)`, `
CREATE TABLE IF NOT EXISTS servers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    owner_id INTEGER NOT NULL,
    node_id INTEGER NOT NULL REFERENCES nodes(id),
    allocation_id INTEGER NOT NULL,
    nest_id INTEGER NOT NULL,
    egg_id INTEGER NOT NULL,
    parent_id INTEGER NULL REFERENCES servers(id),
    splitter_limit INTEGER NOT NULL DEFAULT 0,
    cpu INTEGER NOT NULL DEFAULT 0,
    memory INTEGER NOT NULL DEFAULT 0,
    disk INTEGER NOT NULL DEFAULT 0,
    swap INTEGER NOT NULL DEFAULT 0,
    io INTEGER NOT NULL DEFAULT 500,
    threads TEXT NULL,
    oom_disabled INTEGER NOT NULL DEFAULT 1,
    startup TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    allocation_limit INTEGER NOT NULL DEFAULT 0,
    backup_limit INTEGER NOT NULL DEFAULT 0,
    database_limit INTEGER NOT NULL DEFAULT 0
)`, `
CREATE INDEX IF NOT EXISTS servers_parent_id ON servers(parent_id)`, `
CREATE INDEX IF NOT EXISTS servers_node_id ON servers(node_id)`, `
CREATE TABLE IF NOT EXISTS server_variables (
    server_id INTEGER NOT NULL REFERENCES servers(id),
    env_variable TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    PRIMARY KEY(server_id, env_variable)
)`, `
CREATE TABLE IF NOT EXISTS subusers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server_id INTEGER NOT NULL REFERENCES servers(id),
    user_id INTEGER NOT NULL,
    permissions TEXT NOT NULL DEFAULT '[]',
    UNIQUE(server_id, user_id)
)`, `
CREATE TABLE IF NOT EXISTS backups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server_id INTEGER NOT NULL REFERENCES servers(id),
    name TEXT NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS databases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server_id INTEGER NOT NULL REFERENCES servers(id),
    name TEXT NOT NULL DEFAULT ''
)`, `
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS activity_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event TEXT NOT NULL,
    server_id INTEGER NULL,
    properties TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL
)`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %v: %w", what, id, err)
}
