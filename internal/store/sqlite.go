// Package store provides storage backends for the magic-eye bot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/athif-irshad/the-magic-eye/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	slog.Debug("SQLite database opened")

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetProperty(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM properties WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProperty not found", "key", key)
		return "", false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProperty failed", "error", err, "key", key)
		return "", false, fmt.Errorf("failed to query property %s: %w", key, err)
	}
	slog.Debug("SQLiteStore GetProperty succeeded", "key", key)
	return value, true, nil
}

func (s *SQLiteStore) SetProperty(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO properties (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, key, value)
	if err != nil {
		slog.Error("SQLiteStore SetProperty failed", "error", err, "key", key)
		return fmt.Errorf("failed to set property %s: %w", key, err)
	}
	slog.Debug("SQLiteStore SetProperty succeeded", "key", key)
	return nil
}

func (s *SQLiteStore) GetSubredditSettings(name string) (*models.SubredditSettings, error) {
	var settings models.SubredditSettings
	var blob string
	err := s.db.QueryRow(`SELECT subreddit_name, settings, updated_at FROM subreddit_settings WHERE subreddit_name = ?`, name).
		Scan(&settings.SubredditName, &blob, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSubredditSettings not found", "subreddit", name)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSubredditSettings failed", "error", err, "subreddit", name)
		return nil, fmt.Errorf("failed to query settings for %s: %w", name, err)
	}
	settings.Settings = json.RawMessage(blob)
	slog.Debug("SQLiteStore GetSubredditSettings succeeded", "subreddit", name)
	return &settings, nil
}

func (s *SQLiteStore) SetSubredditSettings(settings models.SubredditSettings) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO subreddit_settings (subreddit_name, settings, updated_at) VALUES (?, ?, ?)`,
		settings.SubredditName, string(settings.Settings), settings.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SetSubredditSettings failed", "error", err, "subreddit", settings.SubredditName)
		return fmt.Errorf("failed to set settings for %s: %w", settings.SubredditName, err)
	}
	slog.Debug("SQLiteStore SetSubredditSettings succeeded", "subreddit", settings.SubredditName)
	return nil
}

func (s *SQLiteStore) GetMagicSubmission(dhash string) (*models.MagicSubmission, error) {
	var sub models.MagicSubmission
	var duplicatesJSON string
	err := s.db.QueryRow(`SELECT dhash, duplicates, exact_match_only, author, created_at FROM magic_submissions WHERE dhash = ?`, dhash).
		Scan(&sub.Dhash, &duplicatesJSON, &sub.ExactMatchOnly, &sub.Author, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetMagicSubmission not found", "dhash", dhash)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetMagicSubmission failed", "error", err, "dhash", dhash)
		return nil, fmt.Errorf("failed to query magic submission %s: %w", dhash, err)
	}
	if err := json.Unmarshal([]byte(duplicatesJSON), &sub.Duplicates); err != nil {
		slog.Error("SQLiteStore GetMagicSubmission duplicates unmarshal failed", "error", err, "dhash", dhash)
		return nil, fmt.Errorf("failed to decode duplicates for %s: %w", dhash, err)
	}
	slog.Debug("SQLiteStore GetMagicSubmission succeeded", "dhash", dhash, "duplicates", len(sub.Duplicates))
	return &sub, nil
}

func (s *SQLiteStore) SaveMagicSubmission(sub models.MagicSubmission) error {
	duplicatesJSON, err := json.Marshal(sub.Duplicates)
	if err != nil {
		slog.Error("SQLiteStore SaveMagicSubmission duplicates marshal failed", "error", err, "dhash", sub.Dhash)
		return fmt.Errorf("failed to encode duplicates for %s: %w", sub.Dhash, err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO magic_submissions (dhash, duplicates, exact_match_only, author, created_at) VALUES (?, ?, ?, ?, ?)`,
		sub.Dhash, string(duplicatesJSON), sub.ExactMatchOnly, sub.Author, sub.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveMagicSubmission failed", "error", err, "dhash", sub.Dhash)
		return fmt.Errorf("failed to save magic submission %s: %w", sub.Dhash, err)
	}
	slog.Debug("SQLiteStore SaveMagicSubmission succeeded", "dhash", sub.Dhash)
	return nil
}

func (s *SQLiteStore) DeleteMagicSubmission(dhash string) error {
	_, err := s.db.Exec(`DELETE FROM magic_submissions WHERE dhash = ?`, dhash)
	if err != nil {
		slog.Error("SQLiteStore DeleteMagicSubmission failed", "error", err, "dhash", dhash)
		return fmt.Errorf("failed to delete magic submission %s: %w", dhash, err)
	}
	slog.Debug("SQLiteStore DeleteMagicSubmission succeeded", "dhash", dhash)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
