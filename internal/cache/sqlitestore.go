package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per URI hash in a local transactional store.
// It mirrors the browser-class persistent tier on native targets where a
// single file is preferable to a directory of records.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS content (
		id INTEGER PRIMARY KEY,
		content_type TEXT NOT NULL,
		data BLOB NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(id uint64) (Record, bool, error) {
	var rec Record
	rec.ID = id
	err := s.db.QueryRow(
		`SELECT content_type, data FROM content WHERE id = ?`, int64(id),
	).Scan(&rec.ContentType, &rec.Data)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) Put(rec Record) error {
	_, err := s.db.Exec(
		`INSERT INTO content (id, content_type, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content_type=excluded.content_type, data=excluded.data`,
		int64(rec.ID), rec.ContentType, rec.Data,
	)
	return err
}

func (s *SQLiteStore) Wipe() error {
	_, err := s.db.Exec(`DELETE FROM content`)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
