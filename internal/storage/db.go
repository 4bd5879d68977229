package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultDBPath returns the default apogee DB location.
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".apogee.db"), nil
}

// ResolveDBPath returns path when set, otherwise the default location.
func ResolveDBPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultDBPath()
}

// OpenSQLite opens (and creates if missing) the SQLite database at the provided path.
// Other processes may hold the same file, so writers wait for the lock
// instead of failing and transactions start as BEGIN IMMEDIATE.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_txlock=immediate"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps read-modify-write sequences from interleaving at the
	// connection level; the engine serializes per user on top of this.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	templates *TemplateRepo
	instances *InstanceRepo
	ledgers   *LedgerRepo
	streaks   *StreakRepo
}

// Open opens the database at path, applies the schema and returns the store.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLiteStore(db), nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:        db,
		templates: NewTemplateRepo(db),
		instances: NewInstanceRepo(db),
		ledgers:   NewLedgerRepo(db),
		streaks:   NewStreakRepo(db),
	}
}

func (s *SQLiteStore) DB() *sql.DB              { return s.db }
func (s *SQLiteStore) Templates() TemplateStore { return s.templates }
func (s *SQLiteStore) Instances() InstanceStore { return s.instances }
func (s *SQLiteStore) Ledgers() LedgerStore     { return s.ledgers }
func (s *SQLiteStore) Streaks() StreakStore     { return s.streaks }
func (s *SQLiteStore) Close() error             { return s.db.Close() }

// DataVersion reports SQLite's data_version for the store's connection. It
// moves only when another connection commits, which is how a long-running
// process notices writes made by the CLI.
func (s *SQLiteStore) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("data version: %w", err)
	}
	return v, nil
}
