package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
            k BLOB PRIMARY KEY,
            v BLOB NOT NULL
        );`
	defaultFilePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

// ErrPathRequired is returned when a persistent backend is opened without a path.
var ErrPathRequired = errors.New("storage: path must be configured")

// SQLiteDB is a key-value table inside a SQLite database.
type SQLiteDB struct {
	db *sql.DB
}

// FileDSN converts a filesystem path into an on-disk SQLite DSN with
// busy-timeout and WAL pragmas applied.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// NewSQLiteDB opens the DSN and applies the kv schema.
func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Put(key []byte, value []byte) error {
	_, err := s.db.Exec(`
        INSERT INTO kv(k, v) VALUES(?, ?)
        ON CONFLICT(k) DO UPDATE SET v = excluded.v
    `, key, value)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return value, nil
}

func (s *SQLiteDB) Has(key []byte) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv WHERE k = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has: %w", err)
	}
	return true, nil
}

func (s *SQLiteDB) Delete(key []byte) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE k = ?`, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
