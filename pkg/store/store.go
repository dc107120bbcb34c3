// Package store provides the durable keyed storage for credvault: scalar
// settings and encrypted credential records in a local SQLite database.
//
// The store never sees plaintext. Records arrive as opaque ciphertext/iv
// pairs produced by the session layer, and settings hold only non-secret
// scalars (master credential material is already one-way hashed or salted).
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Constants
const (
	DBFileName = "vault.db"
	FileMode   = 0600 // Owner read/write only
	DirMode    = 0700 // Owner read/write/execute only
)

// Errors
var (
	ErrRecordNotFound = errors.New("store: record not found")
)

// Record is one encrypted credential row as persisted. Ciphertext and IV are
// opaque to the store.
type Record struct {
	ID         int64
	Ciphertext []byte
	IV         []byte
}

// Store manages the SQLite database backing one vault.
type Store struct {
	path string
	db   *sql.DB
}

// Open opens (creating if necessary) the vault database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return nil, fmt.Errorf("store: failed to create vault directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	// Single-connection mode avoids "database is locked" errors; appropriate
	// for CLI usage where concurrent access is limited.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to create tables: %w", err)
	}

	if err := os.Chmod(dbPath, FileMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to set database permissions: %w", err)
	}

	return &Store{path: dir, db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the vault directory.
func (s *Store) Path() string {
	return s.path
}

// createTables creates the required SQLite tables.
func createTables(db *sql.DB) error {
	// settings table (scalar configuration: master credential, sync config)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// records table (encrypted credentials; ids are store-assigned and
	// unique per vault)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ciphertext BLOB NOT NULL,
			iv BLOB NOT NULL
		)
	`)
	return err
}

// GetSetting reads a setting. The boolean reports whether the name exists.
func (s *Store) GetSetting(name string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE name = ?", name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: failed to read setting %q: %w", name, err)
	}
	return value, true, nil
}

// PutSetting inserts or replaces a setting.
func (s *Store) PutSetting(name, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, value)
	if err != nil {
		return fmt.Errorf("store: failed to write setting %q: %w", name, err)
	}
	return nil
}

// DeleteSetting removes a setting. Deleting a missing setting is not an error.
func (s *Store) DeleteSetting(name string) error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE name = ?", name); err != nil {
		return fmt.Errorf("store: failed to delete setting %q: %w", name, err)
	}
	return nil
}

// AddRecord inserts a new encrypted record and returns its assigned id.
func (s *Store) AddRecord(ciphertext, iv []byte) (int64, error) {
	res, err := s.db.Exec("INSERT INTO records (ciphertext, iv) VALUES (?, ?)", ciphertext, iv)
	if err != nil {
		return 0, fmt.Errorf("store: failed to add record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: failed to get record id: %w", err)
	}
	return id, nil
}

// PutRecord inserts or replaces a record under an explicit id. Used by
// snapshot import and pull-then-apply, where ids originate elsewhere.
func (s *Store) PutRecord(id int64, ciphertext, iv []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO records (id, ciphertext, iv) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET ciphertext = excluded.ciphertext, iv = excluded.iv
	`, id, ciphertext, iv)
	if err != nil {
		return fmt.Errorf("store: failed to put record %d: %w", id, err)
	}
	return nil
}

// UpdateRecord replaces the ciphertext of an existing record.
func (s *Store) UpdateRecord(id int64, ciphertext, iv []byte) error {
	res, err := s.db.Exec("UPDATE records SET ciphertext = ?, iv = ? WHERE id = ?", ciphertext, iv, id)
	if err != nil {
		return fmt.Errorf("store: failed to update record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteRecord removes a record by id.
func (s *Store) DeleteRecord(id int64) error {
	res, err := s.db.Exec("DELETE FROM records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: failed to delete record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// AllRecords returns every encrypted record ordered by id.
func (s *Store) AllRecords() ([]Record, error) {
	rows, err := s.db.Query("SELECT id, ciphertext, iv FROM records ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Ciphertext, &r.IV); err != nil {
			return nil, fmt.Errorf("store: failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating records: %w", err)
	}
	return records, nil
}

// ClearAll wipes every record and every setting except the named preserve
// list, in one transaction. The preserve list exists for the pull-then-apply
// protocol: a destructive pull must not discard the sync configuration that
// made the pull possible.
func (s *Store) ClearAll(preserve ...string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records"); err != nil {
		return fmt.Errorf("store: failed to clear records: %w", err)
	}
	// Reset the id sequence so a replaced vault starts clean
	if _, err := tx.Exec("DELETE FROM sqlite_sequence WHERE name = 'records'"); err != nil {
		return fmt.Errorf("store: failed to reset record sequence: %w", err)
	}

	if len(preserve) == 0 {
		if _, err := tx.Exec("DELETE FROM settings"); err != nil {
			return fmt.Errorf("store: failed to clear settings: %w", err)
		}
	} else {
		placeholders := strings.Repeat("?,", len(preserve))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(preserve))
		for i, name := range preserve {
			args[i] = name
		}
		query := "DELETE FROM settings WHERE name NOT IN (" + placeholders + ")"
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("store: failed to clear settings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: failed to commit transaction: %w", err)
	}
	return nil
}
