package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore persists the in-memory state to a single SQLite table as
// JSON blobs, one row per bucket, snapshotting the full state after every
// successful mutation. Path handling creates parent directories as needed.
type SQLiteStore struct {
	*Store
	db   *sql.DB
	path string
}

var sqliteBuckets = []string{"projects", "concepts", "nodes", "measurements"}

// NewSQLite opens (or creates) the database at path, loads any previous
// snapshot into a fresh store and arranges for re-persistence after each
// mutation.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "presucore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}

	s := &SQLiteStore{Store: New(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.Store.persist = s.save
	return s, nil
}

func (s *SQLiteStore) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap Snapshot
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		found = true
		switch bucket {
		case "projects":
			if err := json.Unmarshal(payload, &snap.Projects); err != nil {
				return fmt.Errorf("decode projects: %w", err)
			}
		case "concepts":
			if err := json.Unmarshal(payload, &snap.Concepts); err != nil {
				return fmt.Errorf("decode concepts: %w", err)
			}
		case "nodes":
			if err := json.Unmarshal(payload, &snap.Nodes); err != nil {
				return fmt.Errorf("decode nodes: %w", err)
			}
		case "measurements":
			if err := json.Unmarshal(payload, &snap.Measurements); err != nil {
				return fmt.Errorf("decode measurements: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if found {
		s.Store.ImportState(snap)
	}
	return nil
}

func (s *SQLiteStore) save(snap Snapshot) (retErr error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case "projects":
			data, err = json.Marshal(snap.Projects)
		case "concepts":
			data, err = json.Marshal(snap.Concepts)
		case "nodes":
			data, err = json.Marshal(snap.Nodes)
		case "measurements":
			data, err = json.Marshal(snap.Measurements)
		}
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO state (bucket, payload) VALUES (?, ?)
			 ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
			bucket, data,
		); err != nil {
			return fmt.Errorf("write %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
