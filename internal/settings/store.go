// Package settings persists the user's selections across sessions and
// enforces the option/model capability invariants.
package settings

import (
	"database/sql"
	"encoding/json"
	"path/filepath"

	_ "modernc.org/sqlite"

	"heyrag/internal/models"
)

// Persistence namespaces. Centralized so every consumer agrees on them.
const (
	KeyProject = "project"
	KeyModel   = "model"
	KeyOptions = "options"
)

// Store is a small key-value layer over sqlite.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the settings database under dir.
func Open(dir string) (*Store, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, "heyrag.db"))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := `CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO settings(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}

// LoadOptions returns the persisted generation options merged over the
// defaults, so missing fields keep their default value.
func (s *Store) LoadOptions() models.GenerationOptions {
	opts := models.DefaultOptions()
	raw, err := s.Get(KeyOptions)
	if err != nil || raw == "" {
		return opts
	}
	_ = json.Unmarshal([]byte(raw), &opts)
	return opts
}

func (s *Store) SaveOptions(opts models.GenerationOptions) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	return s.Set(KeyOptions, string(raw))
}
